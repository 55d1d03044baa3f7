package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"

	"github.com/reelvault/reelvault/svc/catalog"
)

// PaddleConfig holds configuration for the Paddle billing provider.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY,required"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET,required"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}

// PaddleProvider implements Provider on top of the Paddle Billing API.
type PaddleProvider struct {
	client   *paddle.SDK
	verifier *paddle.WebhookVerifier
}

// NewPaddleProvider creates a Paddle-backed billing provider.
func NewPaddleProvider(cfg PaddleConfig) (*PaddleProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: paddle API key is required", ErrMisconfigured)
	}
	if cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("%w: paddle webhook secret is required", ErrMisconfigured)
	}

	var client *paddle.SDK
	var err error
	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(cfg.APIKey)
	case "production", "":
		client, err = paddle.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("%w: invalid paddle environment %q", ErrMisconfigured, cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle client: %w", err)
	}

	return &PaddleProvider{
		client:   client,
		verifier: paddle.NewWebhookVerifier(cfg.WebhookSecret),
	}, nil
}

// Metadata keys attached to checkout transactions and echoed back on
// webhook events.
const (
	metaUserID   = "user_id"
	metaPlanType = "plan_type"
)

// CreateCheckoutSession opens a hosted Paddle checkout for the given plan.
func (p *PaddleProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if req.PriceRef == "" {
		return nil, fmt.Errorf("%w: price reference is required", ErrMisconfigured)
	}
	if req.UserID == "" {
		return nil, errors.New("user id is required")
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  req.PriceRef,
		Quantity: 1,
	})

	transactionReq := &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{*item},
		CustomData: paddle.CustomData{
			metaUserID:   req.UserID,
			metaPlanType: string(req.PlanID),
		},
	}
	if req.Email != "" {
		transactionReq.CustomData["email"] = req.Email
	}
	if req.SuccessURL != "" {
		transactionReq.Checkout = &paddle.TransactionCheckout{
			URL: paddle.PtrTo(req.SuccessURL),
		}
	}

	transaction, err := p.client.TransactionsClient.CreateTransaction(ctx, transactionReq)
	if err != nil {
		return nil, fmt.Errorf("%w: create paddle transaction: %v", ErrUpstreamUnavailable, err)
	}

	if transaction.Checkout == nil || transaction.Checkout.URL == nil {
		return nil, fmt.Errorf("%w: no checkout URL returned from paddle", ErrUpstreamUnavailable)
	}

	return &CheckoutSession{
		Ref: transaction.ID,
		URL: *transaction.Checkout.URL,
	}, nil
}

// ParseWebhook verifies the Paddle-Signature header against the payload and
// normalizes the event. The verification request mirrors what Paddle signed.
func (p *PaddleProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request for verification: %w", err)
	}
	req.Header.Set("Paddle-Signature", signature)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !valid {
		return nil, ErrInvalidSignature
	}

	return normalizePaddleEvent(payload)
}

// CheckoutSession fetches a checkout transaction and extracts the settled
// session details the reconciler needs.
func (p *PaddleProvider) CheckoutSession(ctx context.Context, ref string) (*SessionDetails, error) {
	if ref == "" {
		return nil, errors.New("session reference is required")
	}

	transaction, err := p.client.TransactionsClient.GetTransaction(ctx, &paddle.GetTransactionRequest{
		TransactionID: ref,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get paddle transaction: %v", ErrUpstreamUnavailable, err)
	}

	if transaction.Status != paddle.TransactionStatusCompleted && transaction.Status != paddle.TransactionStatusPaid {
		return nil, fmt.Errorf("%w: transaction status %s", ErrSessionIncomplete, transaction.Status)
	}

	return sessionDetailsFromTransaction(transaction), nil
}

// sessionDetailsFromTransaction maps a settled Paddle transaction onto the
// provider-neutral session details.
func sessionDetailsFromTransaction(transaction *paddle.Transaction) *SessionDetails {
	details := &SessionDetails{
		Ref:  transaction.ID,
		Mode: catalog.BillingModeOneTime,
	}
	if transaction.SubscriptionID != nil {
		details.SubscriptionRef = *transaction.SubscriptionID
		details.Mode = catalog.BillingModeSubscription
	}
	if transaction.CustomerID != nil {
		details.CustomerRef = *transaction.CustomerID
	}
	if len(transaction.Items) > 0 {
		details.PriceRef = transaction.Items[0].Price.ID
	}

	if userID, ok := transaction.CustomData[metaUserID].(string); ok {
		details.UserID = userID
	}
	if planType, ok := transaction.CustomData[metaPlanType].(string); ok {
		details.PlanID = catalog.PlanID(planType)
	}
	if email, ok := transaction.CustomData["email"].(string); ok {
		details.Email = email
	}

	return details
}

// paddleEnvelope is the common shape of every Paddle webhook payload.
type paddleEnvelope struct {
	EventID    string         `json:"event_id"`
	EventType  string         `json:"event_type"`
	OccurredAt string         `json:"occurred_at"`
	Data       map[string]any `json:"data"`
}

// normalizePaddleEvent maps a raw Paddle payload onto the Event union.
// Paddle event types have different data shapes, so fields are extracted
// from loosely-typed maps rather than SDK structs.
func normalizePaddleEvent(payload []byte) (*Event, error) {
	var env paddleEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}

	event := &Event{
		ID:            env.EventID,
		ProviderEvent: env.EventType,
	}
	if ts, err := time.Parse(time.RFC3339, env.OccurredAt); err == nil {
		event.OccurredAt = ts
	}

	data := env.Data
	extractMetadata(event, data)

	switch env.EventType {
	case "transaction.completed":
		event.SessionRef, _ = data["id"].(string)
		event.SubscriptionRef, _ = data["subscription_id"].(string)
		event.CustomerRef, _ = data["customer_id"].(string)
		event.PriceRef = transactionPriceRef(data)
		event.BillingMode = catalog.BillingModeOneTime
		if event.SubscriptionRef != "" {
			event.BillingMode = catalog.BillingModeSubscription
		}
		// Recurring charges are renewals of an existing subscription; only
		// the initial web checkout activates an entitlement.
		if origin, _ := data["origin"].(string); origin == "subscription_recurring" {
			event.Kind = EventInvoicePaymentSucceeded
		} else {
			event.Kind = EventCheckoutCompleted
		}
		extractBillingPeriod(event, data, "billing_period")

	case "transaction.payment_failed":
		event.Kind = EventInvoicePaymentFailed
		event.SessionRef, _ = data["id"].(string)
		event.SubscriptionRef, _ = data["subscription_id"].(string)
		event.CustomerRef, _ = data["customer_id"].(string)

	case "subscription.created":
		event.Kind = EventSubscriptionCreated
		event.SubscriptionRef, _ = data["id"].(string)
		event.CustomerRef, _ = data["customer_id"].(string)
		event.PriceRef = subscriptionPriceRef(data)
		event.BillingMode = catalog.BillingModeSubscription
		extractBillingPeriod(event, data, "current_billing_period")

	case "subscription.updated", "subscription.resumed":
		event.Kind = EventSubscriptionUpdated
		event.SubscriptionRef, _ = data["id"].(string)
		event.CustomerRef, _ = data["customer_id"].(string)
		event.PriceRef = subscriptionPriceRef(data)
		status, _ := data["status"].(string)
		event.Status = normalizePaddleStatus(status)
		extractBillingPeriod(event, data, "current_billing_period")

	case "subscription.canceled":
		event.Kind = EventSubscriptionUpdated
		event.SubscriptionRef, _ = data["id"].(string)
		event.CustomerRef, _ = data["customer_id"].(string)
		event.Status = SubscriptionStatusCancelled

	case "subscription.past_due":
		event.Kind = EventInvoicePaymentFailed
		event.SubscriptionRef, _ = data["id"].(string)
		event.CustomerRef, _ = data["customer_id"].(string)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnhandledEvent, env.EventType)
	}

	return event, nil
}

// extractMetadata pulls checkout correlation metadata out of custom_data.
func extractMetadata(event *Event, data map[string]any) {
	meta, ok := data["custom_data"].(map[string]any)
	if !ok {
		return
	}
	if userID, ok := meta[metaUserID].(string); ok {
		event.UserID = userID
	}
	if planType, ok := meta[metaPlanType].(string); ok {
		event.PlanID = catalog.PlanID(planType)
	}
	if email, ok := meta["email"].(string); ok {
		event.Email = email
	}
}

// transactionPriceRef reads items[0].price.id from a transaction payload.
func transactionPriceRef(data map[string]any) string {
	items, ok := data["items"].([]any)
	if !ok || len(items) == 0 {
		return ""
	}
	item, ok := items[0].(map[string]any)
	if !ok {
		return ""
	}
	price, ok := item["price"].(map[string]any)
	if !ok {
		return ""
	}
	id, _ := price["id"].(string)
	return id
}

// subscriptionPriceRef reads items[0].price.id from a subscription payload.
// Subscriptions share the transaction item shape for prices.
func subscriptionPriceRef(data map[string]any) string {
	return transactionPriceRef(data)
}

// extractBillingPeriod reads the named period object and sets the event's
// period bounds when both timestamps parse.
func extractBillingPeriod(event *Event, data map[string]any, key string) {
	period, ok := data[key].(map[string]any)
	if !ok {
		return
	}
	starts, _ := period["starts_at"].(string)
	ends, _ := period["ends_at"].(string)
	start, err1 := time.Parse(time.RFC3339, starts)
	end, err2 := time.Parse(time.RFC3339, ends)
	if err1 == nil && err2 == nil {
		event.PeriodStart = start
		event.PeriodEnd = end
	}
}

// normalizePaddleStatus collapses Paddle subscription statuses onto the
// two states the entitlement ledger distinguishes.
func normalizePaddleStatus(status string) string {
	switch strings.ToLower(status) {
	case "active", "trialing":
		return SubscriptionStatusActive
	default:
		return SubscriptionStatusCancelled
	}
}
