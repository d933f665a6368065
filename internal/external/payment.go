package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"onboard/internal/billing"
	"onboard/internal/types"
)

// Remote billing-platform product IDs. The charge webhook identifies line
// items by these IDs, not by name.
const (
	productEssentials        int64 = 171
	productSupportPlus       int64 = 172
	productPro               int64 = 173
	productEmbedded          int64 = 174
	productCredentialSetup   int64 = 175
	productAIAgentSetup      int64 = 176
	productWorkflowSetup     int64 = 177
	productLocalHostingSetup int64 = 178
	productLocalHostingMonth int64 = 179
)

var planProductIDs = map[types.PlanKey]int64{
	types.PlanEssentials:  productEssentials,
	types.PlanSupportPlus: productSupportPlus,
	types.PlanPro:         productPro,
	types.PlanEmbedded:    productEmbedded,
}

// productPrice is one pricing entry on a webhook product line.
type productPrice struct {
	Price int    `json:"price"`
	Unit  string `json:"unit"` // "month" or "year"
	ID    int64  `json:"id"`
}

// product is one line item in the charge webhook payload.
type product struct {
	ID       int64          `json:"id"`
	Quantity int            `json:"quantity"`
	Total    int            `json:"total"`
	Shipping bool           `json:"shipping"`
	Tax      bool           `json:"tax"`
	Taxable  bool           `json:"taxable"`
	Type     string         `json:"type"` // "subscription" or "one_time"
	Price    []productPrice `json:"price"`
}

func subscriptionProduct(id int64, price int, unit string) product {
	return product{
		ID:       id,
		Quantity: 1,
		Total:    price,
		Type:     "subscription",
		Price:    []productPrice{{Price: price, Unit: unit, ID: id}},
	}
}

func oneTimeProduct(id int64, price int) product {
	return product{
		ID:       id,
		Quantity: 1,
		Total:    price,
		Type:     "one_time",
		Price:    []productPrice{{Price: price, Unit: "month", ID: id}},
	}
}

// buildProducts assembles the webhook line items from the record: the active
// plan subscription at its effective (affiliate-aware) price, any assisted
// setup fees on tiers where they are billable, and the local hosting pair.
// Returns an error for inquire-priced plans, which must never reach checkout.
func buildProducts(resolver *billing.Resolver, record *types.AnswerRecord) ([]product, error) {
	plan := record.ActivePlan()
	code := record.AffiliateCodeValue()
	yearly := record.Billing == types.BillingYearly

	var planPrice *int
	unit := "month"
	if yearly {
		planPrice = resolver.EffectiveYearlyTotal(plan, code)
		unit = "year"
	} else {
		planPrice = resolver.EffectivePrice(plan, code)
	}
	if planPrice == nil {
		return nil, types.NewAppError(types.ErrCodeConflictInquire, "plan has no fixed price", nil)
	}

	products := []product{
		subscriptionProduct(planProductIDs[plan], *planPrice, unit),
	}

	assisted := func(c *types.SetupChoice) bool {
		return c != nil && *c == types.SetupAssisted
	}
	if billing.IsPaidAddon(plan) {
		if assisted(record.CredentialSetup) {
			products = append(products, oneTimeProduct(productCredentialSetup, billing.AssistedSetupFee))
		}
		if assisted(record.AIAgentSetup) {
			products = append(products, oneTimeProduct(productAIAgentSetup, billing.AssistedSetupFee))
		}
		if assisted(record.WorkflowSetup) {
			products = append(products, oneTimeProduct(productWorkflowSetup, billing.AssistedSetupFee))
		}
	}

	if record.LocalHosting != nil && *record.LocalHosting {
		products = append(products,
			oneTimeProduct(productLocalHostingSetup, billing.HostingSetupFee),
			subscriptionProduct(productLocalHostingMonth, billing.HostingMonthly, "month"),
		)
	}

	return products, nil
}

// WebhookGatewayConfig holds the configuration for creating a WebhookGateway.
type WebhookGatewayConfig struct {
	// URL is the charge webhook endpoint. Empty means payment is disabled.
	URL    string
	Logger *slog.Logger
}

// WebhookGateway implements PaymentGateway against the billing platform's
// charge webhook. The webhook performs the card charge synchronously and
// reports the outcome in the response body.
type WebhookGateway struct {
	base     *BaseClient
	url      string
	resolver *billing.Resolver
	logger   *slog.Logger
	nowFn    func() time.Time
}

// NewWebhookGateway creates a WebhookGateway. Charges are never retried:
// a timeout after the upstream accepted the charge would double-bill, so the
// retry policy is zero-attempt and failures surface to the caller instead.
func NewWebhookGateway(httpClient *http.Client, resolver *billing.Resolver, cfg WebhookGatewayConfig) *WebhookGateway {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		httpClient,
		"payment-webhook",
		RetryPolicy{MaxRetries: 0, MinWait: time.Second, MaxWait: time.Second},
		"Onboard/1.0",
	)

	return &WebhookGateway{
		base:     base,
		url:      cfg.URL,
		resolver: resolver,
		logger:   logger,
		nowFn:    time.Now,
	}
}

// chargePayload is the webhook request body.
type chargePayload struct {
	ContactID       int64                  `json:"contact_id"`
	ExternalOrderID string                 `json:"external_order_id"`
	Products        []product              `json:"products"`
	Billing         types.BillingFrequency `json:"billing"`
	Payer           chargePayer            `json:"payer"`
}

// chargePayer carries the raw card data. Built from CardDetails at the wire
// boundary only; it must never appear in logs.
type chargePayer struct {
	Number      string `json:"ccnumber"`
	Code        string `json:"code"`
	ExpireMonth int    `json:"expire_month"`
	ExpireYear  int    `json:"expire_year"`
}

// Charge posts the order to the charge webhook. A declined card comes back as
// a PaymentResult with Success=false, not an error.
func (g *WebhookGateway) Charge(ctx context.Context, card types.CardDetails, record *types.AnswerRecord) (types.PaymentResult, error) {
	if g.url == "" {
		return types.PaymentResult{}, types.NewAppError(types.ErrCodePaymentNotConfigured, "payment webhook is not configured", nil)
	}
	if record.RecordID == nil || *record.RecordID == "" {
		return types.PaymentResult{}, types.NewAppError(types.ErrCodePaymentMissingRecord, "no contact record exists for this session", nil)
	}
	contactID, err := strconv.ParseInt(*record.RecordID, 10, 64)
	if err != nil {
		return types.PaymentResult{}, types.NewAppError(types.ErrCodePaymentMissingRecord, "contact record id is not numeric", err)
	}

	products, err := buildProducts(g.resolver, record)
	if err != nil {
		return types.PaymentResult{}, err
	}

	externalOrderID := fmt.Sprintf("AWE-%s-%d", *record.RecordID, g.nowFn().UnixMilli())
	payload := chargePayload{
		ContactID:       contactID,
		ExternalOrderID: externalOrderID,
		Products:        products,
		Billing:         record.Billing,
		Payer: chargePayer{
			Number:      card.Number.Unmask(),
			Code:        card.Code.Unmask(),
			ExpireMonth: card.ExpireMonth,
			ExpireYear:  card.ExpireYear,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return types.PaymentResult{}, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode charge payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return types.PaymentResult{}, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build charge request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.base.Do(req)
	if err != nil {
		return types.PaymentResult{}, types.NewAppError(types.ErrCodeUpstreamPayment, "charge request failed", err)
	}
	defer resp.Body.Close()

	var result struct {
		Success       bool   `json:"success"`
		TransactionID string `json:"transaction_id"`
		Error         string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return types.PaymentResult{}, types.NewAppError(types.ErrCodeUpstreamPayment, "failed to decode charge response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !result.Success {
		msg := result.Error
		if msg == "" {
			msg = fmt.Sprintf("payment failed (%d)", resp.StatusCode)
		}
		g.logger.WarnContext(ctx, "charge declined",
			"order_id", externalOrderID,
			"status", resp.StatusCode,
		)
		return types.PaymentResult{Success: false, Error: msg}, nil
	}

	transactionID := result.TransactionID
	if transactionID == "" {
		transactionID = externalOrderID
	}
	g.logger.InfoContext(ctx, "charge succeeded",
		"order_id", externalOrderID,
		"transaction_id", transactionID,
	)
	return types.PaymentResult{Success: true, TransactionID: transactionID}, nil
}
