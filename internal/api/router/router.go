// Package router assembles the HTTP surface of the booking and ledger
// core.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/danielthames360/baby-spa-sub004/internal/booking"
	httpmiddleware "github.com/danielthames360/baby-spa-sub004/internal/http/middleware"
	"github.com/danielthames360/baby-spa-sub004/internal/ledger"
	"github.com/danielthames360/baby-spa-sub004/internal/live"
	"github.com/danielthames360/baby-spa-sub004/internal/schedule"
	"github.com/danielthames360/baby-spa-sub004/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	ScheduleHandler    *schedule.Handler
	BookingHandler     *booking.Handler
	LedgerHandler      *ledger.Handler
	LiveHub            *live.Hub
	MetricsHandler     http.Handler
	JWTSecret          string
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.LiveHub != nil {
			public.Get("/ws/availability", cfg.LiveHub.ServeWS)
		}
	})

	// Authenticated API
	r.Group(func(api chi.Router) {
		api.Use(httpmiddleware.Auth(cfg.JWTSecret))

		if cfg.ScheduleHandler != nil {
			api.Get("/availability", cfg.ScheduleHandler.GetAvailability)
		}

		if cfg.BookingHandler != nil {
			api.Route("/appointments", func(r chi.Router) {
				r.Post("/", cfg.BookingHandler.CreateAppointment)
				r.Post("/bulk", cfg.BookingHandler.CreateBulk)
				r.Route("/{id}", func(r chi.Router) {
					r.Post("/reschedule", cfg.BookingHandler.Reschedule)
					r.Post("/cancel", cfg.BookingHandler.Cancel)
					r.Post("/start", cfg.BookingHandler.Start)
					r.Post("/complete", cfg.BookingHandler.Complete)
					r.Post("/no-show", cfg.BookingHandler.NoShow)
					r.Get("/history", cfg.BookingHandler.History)
				})
			})
		}

		if cfg.LedgerHandler != nil {
			api.Post("/payments", cfg.LedgerHandler.RecordPayment)
			api.Route("/transactions", func(r chi.Router) {
				r.Post("/", cfg.LedgerHandler.CreateTransaction)
				r.Post("/{id}/void", cfg.LedgerHandler.VoidTransaction)
			})
			api.Route("/cash-register", func(r chi.Router) {
				r.Get("/current", cfg.LedgerHandler.CurrentCashRegister)
				r.Post("/open", cfg.LedgerHandler.OpenCashRegister)
				r.Post("/close", cfg.LedgerHandler.CloseCashRegister)
			})
		}
	})

	return r
}
