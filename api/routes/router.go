package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/hotelbooker-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/hotelbooker-backend/api/controllers/webhooks"
	"github.com/angelmondragon/hotelbooker-backend/api/middleware"
	"github.com/angelmondragon/hotelbooker-backend/internal/bookings"
	"github.com/angelmondragon/hotelbooker-backend/internal/payments"
	paymentwebhook "github.com/angelmondragon/hotelbooker-backend/internal/webhooks/payments"
	"github.com/angelmondragon/hotelbooker-backend/pkg/config"
	"github.com/angelmondragon/hotelbooker-backend/pkg/db"
	"github.com/angelmondragon/hotelbooker-backend/pkg/logger"
	"github.com/angelmondragon/hotelbooker-backend/pkg/redis"
)

// redisStore is the slice of the redis client the HTTP layer depends on.
type redisStore interface {
	redis.IdempotencyStore
	Ping(ctx context.Context) error
}

type webhookEventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

var _ webhookEventGuard = (*paymentwebhook.IdempotencyGuard)(nil)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient redisStore,
	gatherer prometheus.Gatherer,
	bookingService bookings.Service,
	paymentService payments.Service,
	gateway payments.Gateway,
	webhookService webhookcontrollers.PaymentWebhookService,
	webhookGuard webhookEventGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	readiness := map[string]controllers.Pinger{}
	if dbP != nil {
		readiness["database"] = dbP
	}
	if redisClient != nil {
		readiness["redis"] = redisClient
	}

	mountOps(r, cfg, logg, gatherer, readiness)

	r.Post("/webhooks/processor", webhookcontrollers.PaymentProcessorWebhook(webhookService, gateway, webhookGuard, logg))

	idempotent, critical := passthrough, passthrough
	if redisClient != nil {
		idempotent = middleware.Idempotency(redisClient, cfg.Eventing.IdempotencyTTL, logg)
		critical = middleware.Idempotency(redisClient, max(cfg.Eventing.IdempotencyTTL, middleware.CriticalIdempotencyTTL), logg)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/session", controllers.Session(logg))

		r.Route("/bookings", func(r chi.Router) {
			r.With(idempotent).Post("/", controllers.CreateBooking(bookingService, logg))
			r.Get("/", controllers.ListBookings(bookingService, logg))
			r.Get("/upcoming", controllers.UpcomingBookings(bookingService, logg))
			r.Get("/{bookingId}", controllers.GetBooking(bookingService, logg))
			r.With(critical).Post("/{bookingId}/cancel", controllers.CancelBooking(bookingService, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.With(critical).Post("/create-intent", controllers.CreatePaymentIntent(paymentService, logg))
			r.With(idempotent).Post("/confirm/{reference}", controllers.ConfirmPayment(paymentService, logg))
			r.Get("/intent/{reference}", controllers.GetPaymentByReference(paymentService, logg))
			r.Get("/booking/{bookingId}", controllers.GetPaymentByBooking(paymentService, logg))
			r.Get("/my-payments", controllers.ListMyPayments(paymentService, logg))
		})
	})

	return r
}

func passthrough(next http.Handler) http.Handler { return next }
