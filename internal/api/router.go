package api

import (
	"log"
	"net/http"
	"strings"

	"github.com/DIEGOMDK12/netexv1-sub001/internal/api/middleware"
	"github.com/DIEGOMDK12/netexv1-sub001/internal/auth"
	"github.com/DIEGOMDK12/netexv1-sub001/internal/gateway"
)

type RouterConfig struct {
	Handlers   *Handlers
	JWTService *auth.JWTService
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	h := cfg.Handlers

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Inbound gateway webhooks. One endpoint per processor so each
	// signature scheme stays isolated.
	mux.HandleFunc("/webhooks/card", post(h.Webhook(gateway.KindCard)))
	mux.HandleFunc("/webhooks/instant", post(h.Webhook(gateway.KindInstant)))
	mux.HandleFunc("/webhooks/pix", post(h.Webhook(gateway.KindPix)))

	// Orders
	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			h.CreateOrder(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/orders/", func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case strings.HasSuffix(path, "/charge") && r.Method == http.MethodPost:
			h.CreateCharge(w, r)
		case strings.HasSuffix(path, "/poll") && r.Method == http.MethodPost:
			h.PollOrder(w, r)
		case r.Method == http.MethodGet:
			h.GetOrder(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Admin surface, operator tokens only.
	adminAuth := middleware.AuthMiddleware(cfg.JWTService)
	adminOnly := middleware.RequireRole("admin")

	admin := http.NewServeMux()
	admin.HandleFunc("/admin/orders/", func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case strings.HasSuffix(path, "/cancel") && r.Method == http.MethodPost:
			h.CancelOrder(w, r)
		case strings.HasSuffix(path, "/viewed") && r.Method == http.MethodPost:
			h.MarkOrderViewed(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	admin.HandleFunc("/admin/stock/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			h.UploadStock(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.Handle("/admin/", adminAuth(adminOnly(admin)))

	return withLogging(mux)
}

func post(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[API] %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
