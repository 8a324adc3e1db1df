package router

import (
	"net/http"

	"vendorse/internal/config"
	"vendorse/internal/controller"
	"vendorse/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(c *controller.Controller, m *metrics.Metrics, limits config.RateLimitConfig, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	authLimit := newIPLimiter(limits.AuthRPS, limits.AuthBurst)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(cors)
	if m != nil {
		r.Use(m.Instrument)
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", c.Ping)

		// public
		r.Group(func(r chi.Router) {
			r.Use(authLimit.Middleware)
			r.Post("/auth/register", c.Register)
			r.Post("/auth/login", c.Login)
			r.Post("/organizations", c.CreateOrganization)
		})

		// authenticated
		r.Group(func(r chi.Router) {
			r.Use(c.Authenticate)

			r.Get("/auth/me", c.Me)

			r.Get("/organizations", c.ListOrganizations)
			r.Get("/organizations/{orgId}", c.GetOrganization)

			r.Get("/users", c.ListUsers)
			r.Get("/users/{userId}", c.GetUser)
			r.Put("/users/{userId}", c.UpdateUser)

			r.Get("/tenders", c.ListTenders)
			r.Post("/tenders", c.CreateTender)
			r.Get("/tenders/{tenderId}", c.GetTender)
			r.Put("/tenders/{tenderId}/publish", c.PublishTender)
			r.Put("/tenders/{tenderId}/award/{bidId}", c.AwardTender)
			r.Post("/tenders/{tenderId}/bids", c.SubmitBid)

			r.Get("/bids/my", c.MyBids)
			r.Post("/bids/{bidId}/evaluate", c.EvaluateBid)
			r.Get("/bids/{bidId}/score", c.BidScore)

			r.Get("/dashboard/stats", c.DashboardStats)
			r.Get("/notifications", c.Notifications)

			r.Post("/files/upload-url", c.UploadURL)
			r.Get("/files/download-url", c.DownloadURL)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"reason":"page not found"}`))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		w.Write([]byte(`{"reason":"method not allowed"}`))
	})

	return r
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		w.Header().Set("Access-Control-Max-Age", "600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
