package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/DIEGOMDK12/netexv1-sub001/internal/domain/order"
	"github.com/DIEGOMDK12/netexv1-sub001/internal/gateway"
	"github.com/DIEGOMDK12/netexv1-sub001/internal/infrastructure/store"
	"github.com/DIEGOMDK12/netexv1-sub001/internal/inventory"
	"github.com/DIEGOMDK12/netexv1-sub001/internal/reconcile"
)

// Gateways may retry large duplicate bodies; cap reads defensively.
const maxWebhookBody = 1 << 20

type Handlers struct {
	rec       *reconcile.Reconciler
	allocator *inventory.Allocator
	store     store.Store
}

func NewHandlers(rec *reconcile.Reconciler, allocator *inventory.Allocator, st store.Store) *Handlers {
	return &Handlers{rec: rec, allocator: allocator, store: st}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, map[string]string{"error": message})
}

func extractPathParam(path, prefix string) string {
	rest := strings.TrimPrefix(path, prefix)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

// Webhook handles an inbound gateway confirmation. The raw body must
// reach the signature check unmodified: any re-serialization before
// verification would invalidate the digest.
func (h *Handlers) Webhook(kind gateway.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, ok := h.rec.Gateway(kind)
		if !ok {
			respondError(w, "unknown gateway", http.StatusNotFound)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			respondError(w, "unreadable body", http.StatusBadRequest)
			return
		}

		if !g.VerifySignature(body, r.Header.Get(g.SignatureHeader())) {
			// Security event. The body and header stay out of the log.
			log.Printf("[API] webhook signature rejected for gateway=%s", kind)
			respondError(w, "invalid signature", http.StatusUnauthorized)
			return
		}

		ev, err := g.Normalize(body)
		if err != nil {
			respondError(w, "malformed payload", http.StatusBadRequest)
			return
		}

		result, err := h.rec.Apply(r.Context(), ev)
		if err != nil {
			// Infrastructure fault. A 5xx tells the gateway to retry
			// later, which is exactly what we want for transient faults.
			log.Printf("[API] webhook processing failed for gateway=%s: %v", kind, err)
			respondError(w, "processing failed", http.StatusInternalServerError)
			return
		}

		respondJSON(w, http.StatusOK, map[string]string{"status": result.String()})
	}
}

type createOrderRequest struct {
	BuyerEmail   string `json:"buyer_email"`
	BuyerContact string `json:"buyer_contact"`
	Items        []struct {
		ProductID  string `json:"product_id"`
		VariantID  string `json:"variant_id"`
		Name       string `json:"name"`
		Quantity   int    `json:"quantity"`
		PriceCents int64  `json:"price_cents"`
	} `json:"items"`
}

func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.BuyerEmail == "" || len(req.Items) == 0 {
		respondError(w, "buyer_email and items are required", http.StatusBadRequest)
		return
	}

	o := &order.Order{
		BuyerEmail:   req.BuyerEmail,
		BuyerContact: req.BuyerContact,
	}
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			respondError(w, "quantity must be positive", http.StatusBadRequest)
			return
		}
		o.Items = append(o.Items, order.OrderItem{
			ProductID:  it.ProductID,
			VariantID:  it.VariantID,
			Name:       it.Name,
			Quantity:   it.Quantity,
			PriceCents: it.PriceCents,
		})
		o.TotalCents += it.PriceCents * int64(it.Quantity)
	}

	if err := h.rec.CreateOrder(r.Context(), o); err != nil {
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusCreated, o)
}

// GetOrder returns the buyer-facing view: a paid-but-unfulfilled order
// shows as "processing", never as a success with missing content.
func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/orders/")
	o, err := h.store.GetOrder(r.Context(), id)
	if errors.Is(err, order.ErrOrderNotFound) {
		respondError(w, "order not found", http.StatusNotFound)
		return
	}
	if err != nil {
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	view := map[string]any{
		"id":          o.ID,
		"status":      o.PublicStatus(),
		"total_cents": o.TotalCents,
	}
	if o.Status == order.StatusFulfilled {
		items := make([]map[string]any, 0, len(o.Items))
		for _, it := range o.Items {
			items = append(items, map[string]any{
				"name":    it.Name,
				"content": it.AllocatedSecret,
			})
		}
		view["items"] = items
	}
	respondJSON(w, http.StatusOK, view)
}

type createChargeRequest struct {
	Gateway string `json:"gateway"`
}

func (h *Handlers) CreateCharge(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/orders/")

	var req createChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	charge, err := h.rec.CreateCharge(r.Context(), id, gateway.Kind(req.Gateway))
	if errors.Is(err, order.ErrOrderNotFound) {
		respondError(w, "order not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, gateway.ErrAuthExpired) {
		// Distinct from a payment failure: the vendor must re-authorize.
		respondError(w, "gateway authorization expired", http.StatusConflict)
		return
	}
	if err != nil {
		respondError(w, err.Error(), http.StatusBadGateway)
		return
	}
	respondJSON(w, http.StatusCreated, charge)
}

func (h *Handlers) PollOrder(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/orders/")
	result, err := h.rec.Poll(r.Context(), id)
	if errors.Is(err, order.ErrOrderNotFound) {
		respondError(w, "order not found", http.StatusNotFound)
		return
	}
	if err != nil {
		// Poll timeouts only mean "not yet confirmed".
		respondJSON(w, http.StatusOK, map[string]string{"status": "pending"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": result.String()})
}

// Admin handlers

func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/admin/orders/")
	err := h.rec.Cancel(r.Context(), id)
	if errors.Is(err, order.ErrOrderNotFound) {
		respondError(w, "order not found", http.StatusNotFound)
		return
	}
	if err != nil {
		respondError(w, err.Error(), http.StatusConflict)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *Handlers) MarkOrderViewed(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/admin/orders/")
	if err := h.store.MarkViewed(r.Context(), id); err != nil {
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadStock replaces the whole stock text for a product/variant key.
func (h *Handlers) UploadStock(w http.ResponseWriter, r *http.Request) {
	key := extractPathParam(r.URL.Path, "/admin/stock/")
	if key == "" {
		respondError(w, "stock key required", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, "unreadable body", http.StatusBadRequest)
		return
	}
	if err := h.allocator.Replace(r.Context(), key, string(body)); err != nil {
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	remaining, err := h.allocator.Remaining(r.Context(), key)
	if err != nil {
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"key": key, "lines": remaining})
}
