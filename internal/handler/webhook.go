// This file implements the Stripe webhook handler.
//
// The route is PUBLIC (no auth middleware) because Stripe calls it
// directly; authentication is the webhook signature verification.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v79"

	"github.com/oneirolabs/oneiro/internal/billing"
	"github.com/oneirolabs/oneiro/internal/domain"
	"github.com/oneirolabs/oneiro/internal/service"
	"github.com/oneirolabs/oneiro/internal/store"
)

// WebhookHandler processes incoming billing events from Stripe.
type WebhookHandler struct {
	billing  billing.Service
	profiles service.ProfileService
	store    store.ProfileStore
	logger   *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler.
// billingService may be nil when Stripe is not configured.
func NewWebhookHandler(billingService billing.Service, profiles service.ProfileService, profileStore store.ProfileStore, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		billing:  billingService,
		profiles: profiles,
		store:    profileStore,
		logger:   logger,
	}
}

// RegisterRoutes registers webhook routes on the provided mux.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook verifies and dispatches Stripe webhook events.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		h.logger.Warn("stripe webhook received but billing is not configured")
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 65536))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	event, err := h.billing.VerifyWebhookSignature(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.logger.Info("stripe webhook received", "type", event.Type, "id", event.ID)

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		h.handleSubscriptionChange(event)
	case "customer.subscription.deleted":
		h.handleSubscriptionDeleted(event)
	case "invoice.payment_failed":
		h.handlePaymentFailed(event)
	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
	}

	w.WriteHeader(http.StatusOK)
}

// handleSubscriptionChange sets the user's tier from the subscription's
// price.
func (h *WebhookHandler) handleSubscriptionChange(event stripe.Event) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.Error("failed to parse subscription event", "error", err)
		return
	}
	if sub.Customer == nil {
		h.logger.Warn("subscription event missing customer", "subscription_id", sub.ID)
		return
	}

	profile, err := h.store.GetByStripeCustomer(webhookCtx(), sub.Customer.ID)
	if err != nil {
		h.logger.Warn("no profile for subscription event", "customer_id", sub.Customer.ID)
		return
	}

	tier := domain.TierFree
	if sub.Status == stripe.SubscriptionStatusActive || sub.Status == stripe.SubscriptionStatusTrialing {
		if len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
			if t, ok := h.billing.TierForPriceID(sub.Items.Data[0].Price.ID); ok {
				tier = t
			}
		}
	}

	if err := h.profiles.SetTier(webhookCtx(), profile.UserID, tier); err != nil {
		h.logger.Error("failed to set tier", "error", err, "user_id", profile.UserID)
		return
	}
	h.logger.Info("subscription event processed",
		"user_id", profile.UserID, "status", sub.Status, "tier", tier)
}

// handleSubscriptionDeleted drops the user back to the free tier.
func (h *WebhookHandler) handleSubscriptionDeleted(event stripe.Event) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.Error("failed to parse subscription deleted event", "error", err)
		return
	}
	if sub.Customer == nil {
		return
	}

	profile, err := h.store.GetByStripeCustomer(webhookCtx(), sub.Customer.ID)
	if err != nil {
		h.logger.Warn("no profile for subscription deletion", "customer_id", sub.Customer.ID)
		return
	}

	if err := h.profiles.SetTier(webhookCtx(), profile.UserID, domain.TierFree); err != nil {
		h.logger.Error("failed to downgrade tier", "error", err, "user_id", profile.UserID)
		return
	}
	h.logger.Info("subscription deleted", "user_id", profile.UserID, "subscription_id", sub.ID)
}

// handlePaymentFailed logs the failure. The tier is only dropped when
// Stripe ultimately cancels the subscription.
func (h *WebhookHandler) handlePaymentFailed(event stripe.Event) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		h.logger.Error("failed to parse invoice payment failed event", "error", err)
		return
	}
	if invoice.Customer == nil {
		return
	}

	profile, err := h.store.GetByStripeCustomer(webhookCtx(), invoice.Customer.ID)
	if err != nil {
		h.logger.Debug("no profile for failed payment", "customer_id", invoice.Customer.ID)
		return
	}
	h.logger.Warn("payment failed", "user_id", profile.UserID, "customer_id", invoice.Customer.ID)
}

// webhookCtx returns a background context. Webhooks are asynchronous
// events without a user request context.
func webhookCtx() context.Context {
	return context.Background()
}
