package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	stripe "github.com/stripe/stripe-go/v84"

	"github.com/rosevale/habitloop/internal/auth"
	"github.com/rosevale/habitloop/internal/billing"
	"github.com/rosevale/habitloop/internal/model"
	"github.com/rosevale/habitloop/internal/store"
)

type BillingHandler struct {
	client *billing.Client
	subs   *store.SubscriptionStore
	users  *store.UserStore
	logger *slog.Logger
}

func NewBillingHandler(client *billing.Client, subs *store.SubscriptionStore, us *store.UserStore, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{
		client: client,
		subs:   subs,
		users:  us,
		logger: logger,
	}
}

// Status reports the caller's current plan and subscription record.
func (h *BillingHandler) Status(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	sub, err := h.subs.GetByUser(ac.UserID)
	if err != nil {
		h.logger.Error("get subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	plan := model.PlanFree
	if sub != nil && sub.Status == model.SubStatusActive {
		plan = sub.Plan
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"plan":         plan,
		"limits":       billing.LimitsFor(plan),
		"subscription": sub,
	})
}

// Checkout starts a Stripe checkout for the premium plan and returns
// the hosted page URL.
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	if !h.client.Configured() {
		writeError(w, http.StatusServiceUnavailable, "billing is not configured")
		return
	}

	var req struct {
		Interval string `json:"interval"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	customerID, err := h.customerID(ac.UserID)
	if err != nil {
		h.logger.Error("resolve stripe customer", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	url, err := h.client.CreateCheckoutSession(customerID, h.client.PriceIDForInterval(req.Interval))
	if err != nil {
		h.logger.Error("create checkout session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// Portal returns a Stripe billing portal URL for managing the
// subscription.
func (h *BillingHandler) Portal(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	if !h.client.Configured() {
		writeError(w, http.StatusServiceUnavailable, "billing is not configured")
		return
	}

	sub, err := h.subs.GetByUser(ac.UserID)
	if err != nil {
		h.logger.Error("get subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if sub == nil || sub.StripeCustomerID == "" {
		writeError(w, http.StatusNotFound, "no billing account")
		return
	}

	var req struct {
		ReturnURL string `json:"return_url"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	url, err := h.client.CreateBillingPortalSession(sub.StripeCustomerID, req.ReturnURL)
	if err != nil {
		h.logger.Error("create portal session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// customerID returns the user's Stripe customer, creating one on first
// use and recording it on a pending subscription row.
func (h *BillingHandler) customerID(userID int64) (string, error) {
	sub, err := h.subs.GetByUser(userID)
	if err != nil {
		return "", err
	}
	if sub != nil && sub.StripeCustomerID != "" {
		return sub.StripeCustomerID, nil
	}

	user, err := h.users.GetByID(userID)
	if err != nil {
		return "", err
	}
	customerID, err := h.client.CreateCustomer(user.Email)
	if err != nil {
		return "", err
	}
	if _, err := h.subs.Upsert(userID, customerID, "", model.PlanFree, "incomplete", time.Time{}); err != nil {
		return "", err
	}
	return customerID, nil
}

// Webhook handles Stripe events. Signature verification rejects
// anything not signed with the webhook secret.
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 65536))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}

	event, err := h.client.ConstructWebhookEvent(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		h.handleSubscriptionChanged(event)
	case "customer.subscription.deleted":
		h.handleSubscriptionDeleted(event)
	}

	w.WriteHeader(http.StatusOK)
}

// periodEnd pulls the current period end off the first subscription
// item, where Stripe reports it.
func periodEnd(sub *stripe.Subscription) time.Time {
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		return time.Unix(sub.Items.Data[0].CurrentPeriodEnd, 0).UTC()
	}
	return time.Time{}
}

func (h *BillingHandler) handleSubscriptionChanged(event stripe.Event) {
	var stripeSub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
		h.logger.Error("webhook: unmarshal subscription", "error", err)
		return
	}
	if stripeSub.Customer == nil {
		return
	}

	existing, err := h.subs.GetByCustomerID(stripeSub.Customer.ID)
	if err != nil || existing == nil {
		h.logger.Warn("webhook: no local subscription for customer", "customer_id", stripeSub.Customer.ID, "error", err)
		return
	}

	status := string(stripeSub.Status)
	plan := model.PlanPremium
	if status == string(stripe.SubscriptionStatusCanceled) {
		plan = model.PlanFree
	}

	if _, err := h.subs.Upsert(existing.UserID, stripeSub.Customer.ID, stripeSub.ID, plan, status, periodEnd(&stripeSub)); err != nil {
		h.logger.Error("webhook: upsert subscription", "error", err)
		return
	}
	h.logger.Info("webhook: subscription updated", "user_id", existing.UserID, "status", status)
}

func (h *BillingHandler) handleSubscriptionDeleted(event stripe.Event) {
	var stripeSub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
		h.logger.Error("webhook: unmarshal subscription", "error", err)
		return
	}
	if stripeSub.Customer == nil {
		return
	}

	existing, err := h.subs.GetByCustomerID(stripeSub.Customer.ID)
	if err != nil || existing == nil {
		return
	}

	if _, err := h.subs.Upsert(existing.UserID, stripeSub.Customer.ID, stripeSub.ID, model.PlanFree, model.SubStatusCanceled, time.Now().UTC()); err != nil {
		h.logger.Error("webhook: downgrade subscription", "error", err)
		return
	}
	h.logger.Info("webhook: subscription canceled", "user_id", existing.UserID)
}
