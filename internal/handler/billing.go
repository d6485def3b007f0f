package handler

import (
	"log/slog"
	"net/http"

	"github.com/oneirolabs/oneiro/internal/auth"
	"github.com/oneirolabs/oneiro/internal/billing"
	"github.com/oneirolabs/oneiro/internal/domain"
	"github.com/oneirolabs/oneiro/internal/service"
	"github.com/oneirolabs/oneiro/internal/store"
)

// BillingHandler serves subscription checkout and portal endpoints.
type BillingHandler struct {
	billing  billing.Service
	profiles service.ProfileService
	store    store.ProfileStore
	baseURL  string
	logger   *slog.Logger
}

// NewBillingHandler creates a BillingHandler.
// billingService may be nil when Stripe is not configured.
func NewBillingHandler(billingService billing.Service, profiles service.ProfileService, profileStore store.ProfileStore, baseURL string, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{
		billing:  billingService,
		profiles: profiles,
		store:    profileStore,
		baseURL:  baseURL,
		logger:   logger,
	}
}

// RegisterRoutes registers billing routes with the provided mux.
//
// Routes:
// - POST /api/billing/checkout -> CreateCheckout
// - POST /api/billing/portal   -> OpenPortal
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/billing/checkout", requireUser(http.HandlerFunc(h.CreateCheckout)))
	mux.Handle("POST /api/billing/portal", requireUser(http.HandlerFunc(h.OpenPortal)))
}

type checkoutRequest struct {
	PriceID string `json:"price_id"`
}

// CreateCheckout creates a Stripe Checkout session for a paid plan and
// returns its URL.
func (h *BillingHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		Error(w, r, h.logger, domain.Errorf(domain.EINTERNAL, "handler.CreateCheckout", "billing is not configured"))
		return
	}

	var req checkoutRequest
	if err := decode(r, &req); err != nil {
		Error(w, r, h.logger, err)
		return
	}
	if _, ok := h.billing.TierForPriceID(req.PriceID); !ok {
		Error(w, r, h.logger, domain.Invalid("handler.CreateCheckout", "unknown price"))
		return
	}

	userID := auth.UserID(r.Context())
	profile, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}

	customerID := profile.StripeCustomerID
	if customerID == "" {
		customerID, err = h.billing.CreateCustomer(profile.Email, profile.Name)
		if err != nil {
			Error(w, r, h.logger, domain.Internal(err, "handler.CreateCheckout", "could not create billing account"))
			return
		}
		if err := h.store.SetStripeCustomer(r.Context(), userID, customerID); err != nil {
			Error(w, r, h.logger, domain.Internal(err, "handler.CreateCheckout", "could not save billing account"))
			return
		}
	}

	url, err := h.billing.CreateCheckoutSession(customerID, req.PriceID,
		h.baseURL+"/billing/success", h.baseURL+"/billing/canceled")
	if err != nil {
		Error(w, r, h.logger, domain.Internal(err, "handler.CreateCheckout", "could not start checkout"))
		return
	}
	JSON(w, http.StatusOK, map[string]string{"url": url})
}

// OpenPortal creates a Stripe Customer Portal session and returns its URL.
func (h *BillingHandler) OpenPortal(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		Error(w, r, h.logger, domain.Errorf(domain.EINTERNAL, "handler.OpenPortal", "billing is not configured"))
		return
	}

	profile, err := h.profiles.Get(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}
	if profile.StripeCustomerID == "" {
		Error(w, r, h.logger, domain.Invalid("handler.OpenPortal", "no billing account"))
		return
	}

	url, err := h.billing.CreatePortalSession(profile.StripeCustomerID, h.baseURL+"/settings")
	if err != nil {
		Error(w, r, h.logger, domain.Internal(err, "handler.OpenPortal", "could not open billing portal"))
		return
	}
	JSON(w, http.StatusOK, map[string]string{"url": url})
}
