// internal/api/router.go
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"astrolive/internal/api/handler"
	"astrolive/internal/metrics"
)

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Wallets       *handler.WalletHandler
	Providers     *handler.ProviderHandler
	Consultations *handler.ConsultationHandler
	Sessions      *handler.SessionHandler
	WebSocket     http.Handler
}

// NewRouter sets up and returns a new HTTP router.
func NewRouter(h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/ws", h.WebSocket)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(handler.DefaultTimeout))

		r.Route("/wallets/{accountID}", func(r chi.Router) {
			r.Post("/", h.Wallets.CreateWallet)
			r.Post("/recharge", h.Wallets.Recharge)
			r.Get("/balance", h.Wallets.GetWalletBalance)
			r.Get("/transactions", h.Wallets.GetTransactionHistory)
		})

		r.Route("/providers/{providerID}", func(r chi.Router) {
			r.Post("/", h.Providers.Register)
			r.Get("/availability", h.Providers.GetAvailability)
			r.Get("/consultations/pending", h.Providers.ListPending)
		})

		r.Post("/consultations", h.Consultations.Create)
		r.Post("/consultations/{requestID}/respond", h.Consultations.Respond)

		r.Get("/sessions", h.Sessions.List)
		r.Get("/sessions/{roomID}", h.Sessions.Get)
		r.Post("/sessions/{roomID}/end", h.Sessions.End)
	})

	return r
}

// metricsMiddleware records request counts and latency by route pattern.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordHTTPRequest(r.Method, pattern, strconv.Itoa(status), time.Since(start).Seconds())
	})
}
