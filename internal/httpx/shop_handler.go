package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/renensondx509/unique-sneaker/internal/checkout"
	"github.com/renensondx509/unique-sneaker/internal/payments"
	"github.com/renensondx509/unique-sneaker/internal/redisx"
	"github.com/renensondx509/unique-sneaker/internal/shop"
)

const maxWebhookBody = 1 << 20

type ShopHandler struct {
	Checkout *checkout.Service
	Redis    *redis.Client // nil disables the product snapshot cache
	Static   string        // directory with the front-end, "" disables it
}

type createSessionReq struct {
	Name string `json:"name"`
	City string `json:"city"`
}

type productResp struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PriceCents   int    `json:"price_cents"`
	PriceDisplay string `json:"price_display"`
	TotalSupply  int    `json:"total_supply"`
	SoldCount    int    `json:"sold_count"`
	Available    int    `json:"available"`
}

func (h *ShopHandler) Register(r *chi.Mux) {
	r.Get("/api/product", h.getProduct)
	r.Post("/api/create-checkout-session", h.createCheckoutSession)
	r.Get("/api/owners", h.listOwners)
	r.Post("/webhook", h.webhook)
	r.Get("/api/health", h.health)
	if h.Static != "" {
		r.Handle("/*", http.FileServer(http.Dir(h.Static)))
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *ShopHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, redisx.KeyProductSnapshot).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	p, err := h.Checkout.Product(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
		return
	}
	resp := productResp{
		ID:           p.ID,
		Name:         p.Name,
		PriceCents:   p.PriceCents,
		PriceDisplay: fmt.Sprintf("%.2f", float64(p.PriceCents)/100),
		TotalSupply:  p.TotalSupply,
		SoldCount:    p.SoldCount,
		Available:    p.Available(),
	}
	if h.Redis != nil {
		b, _ := json.Marshal(resp)
		_ = h.Redis.Set(ctx, redisx.KeyProductSnapshot, b, redisx.TTLSnapshot).Err()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ShopHandler) createCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	url, err := h.Checkout.Reserve(ctx, req.Name, req.City)
	switch {
	case errors.Is(err, shop.ErrValidation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Name and city required"})
	case errors.Is(err, shop.ErrSoldOut):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Sold out"})
	case err != nil:
		log.Printf("create checkout session: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
	default:
		// Fresh reservation invalidates any cached snapshot.
		if h.Redis != nil {
			_ = h.Redis.Del(ctx, redisx.KeyProductSnapshot).Err()
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": url})
	}
}

func (h *ShopHandler) listOwners(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	owners, err := h.Checkout.Owners(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
		return
	}
	writeJSON(w, http.StatusOK, owners)
}

// webhook always acks {received:true} once the payload is readable and
// verified; processing failures are logged, never surfaced, so the provider
// does not keep retrying.
func (h *ShopHandler) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	err = h.Checkout.HandleWebhook(r.Context(), body, r.Header.Get("Stripe-Signature"))
	if errors.Is(err, payments.ErrInvalidPayload) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Webhook Error: " + err.Error()})
		return
	}
	if err != nil {
		log.Printf("webhook: %v", err)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *ShopHandler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
