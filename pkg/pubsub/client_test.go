package pubsub

import "testing"

func TestTopicResourceName(t *testing.T) {
	cases := []struct {
		project string
		name    string
		want    string
	}{
		{"hb-prod", "domain-events", "projects/hb-prod/topics/domain-events"},
		{"hb-prod", " domain-events ", "projects/hb-prod/topics/domain-events"},
		{"ignored", "projects/other/topics/domain-events", "projects/other/topics/domain-events"},
		{"", "domain-events", ""},
		{"hb-prod", "", ""},
	}
	for _, tc := range cases {
		if got := topicResourceName(tc.project, tc.name); got != tc.want {
			t.Fatalf("topicResourceName(%q, %q) = %q, want %q", tc.project, tc.name, got, tc.want)
		}
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if c.Publisher("domain") != nil {
		t.Fatalf("expected nil publisher from nil client")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
}
