package migrate

import (
	"fmt"
	"io/fs"
	"regexp"
	"strings"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

const (
	gooseUp   = "-- +goose Up"
	gooseDown = "-- +goose Down"
)

// ValidateDir checks the migrations in dir, or the embedded set when dir is
// empty.
func ValidateDir(dir string) error {
	fsys, err := migrationsFS(dir)
	if err != nil {
		return err
	}
	return validateFS(fsys)
}

func validateFS(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	seen := map[string]string{}
	count := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		version := m[1]
		if prev, ok := seen[version]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", version, prev, name)
		}
		seen[version] = name

		b, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read %q: %w", name, err)
		}
		if err := checkSections(string(b)); err != nil {
			return fmt.Errorf("migration %q: %w", name, err)
		}
		count++
	}
	if count == 0 {
		return fmt.Errorf("no migrations found")
	}
	return nil
}

func checkSections(txt string) error {
	up := strings.Index(txt, gooseUp)
	down := strings.Index(txt, gooseDown)
	switch {
	case up < 0:
		return fmt.Errorf("missing %q", gooseUp)
	case down < 0:
		return fmt.Errorf("missing %q", gooseDown)
	case down < up:
		return fmt.Errorf("%q must come before %q", gooseUp, gooseDown)
	}
	if strings.Count(txt, "-- +goose StatementBegin") != strings.Count(txt, "-- +goose StatementEnd") {
		return fmt.Errorf("unbalanced StatementBegin/StatementEnd")
	}
	return nil
}
