package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"onboard/internal/billing"
	"onboard/internal/types"

	stripe "github.com/stripe/stripe-go/v82"
)

// stripeAPIBase is the default Stripe API base URL.
// Overridable in tests via StripeGatewayConfig.BaseURL.
const stripeAPIBase = "https://api.stripe.com"

// StripeGatewayConfig holds the configuration for creating a StripeGateway.
type StripeGatewayConfig struct {
	SecretKey types.SecretString
	BaseURL   string // Override for testing; defaults to stripeAPIBase
	Logger    *slog.Logger
}

// StripeGateway implements PaymentGateway by making direct HTTP calls to the
// Stripe REST API through BaseClient, routing all requests through the
// platform's resilience infrastructure and keeping testing with httptest
// straightforward. It is the drop-in alternative to WebhookGateway for
// deployments that charge through Stripe instead of the billing platform.
type StripeGateway struct {
	base      *BaseClient
	secretKey types.SecretString
	baseURL   string
	calc      *billing.Calculator
	logger    *slog.Logger
}

// NewStripeGateway creates a StripeGateway. Like WebhookGateway, charges are
// never retried to avoid double billing.
func NewStripeGateway(httpClient *http.Client, calc *billing.Calculator, cfg StripeGatewayConfig) *StripeGateway {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = stripeAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		httpClient,
		"stripe",
		RetryPolicy{MaxRetries: 0, MinWait: time.Second, MaxWait: time.Second},
		"Onboard/1.0",
	)

	return &StripeGateway{
		base:      base,
		secretKey: cfg.SecretKey,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		calc:      calc,
		logger:    logger,
	}
}

// Charge tokenizes the card as a PaymentMethod, then creates and confirms a
// PaymentIntent for the order's due-today total. A card decline comes back as
// a PaymentResult with Success=false; everything else is an error.
func (g *StripeGateway) Charge(ctx context.Context, card types.CardDetails, record *types.AnswerRecord) (types.PaymentResult, error) {
	if g.secretKey.Unmask() == "" {
		return types.PaymentResult{}, types.NewAppError(types.ErrCodePaymentNotConfigured, "stripe secret key is not configured", nil)
	}
	if record.RecordID == nil || *record.RecordID == "" {
		return types.PaymentResult{}, types.NewAppError(types.ErrCodePaymentMissingRecord, "no contact record exists for this session", nil)
	}

	totals := g.calc.Totals(record)
	if totals.DueToday <= 0 {
		return types.PaymentResult{}, types.NewAppError(types.ErrCodeConflictInquire, "order has no chargeable amount", nil)
	}

	pmID, declined, err := g.createPaymentMethod(ctx, card)
	if err != nil {
		return types.PaymentResult{}, err
	}
	if declined != "" {
		return types.PaymentResult{Success: false, Error: declined}, nil
	}

	params := url.Values{}
	params.Set("amount", strconv.Itoa(totals.DueToday*100)) // cents
	params.Set("currency", "aud")
	params.Set("payment_method", pmID)
	params.Set("confirm", "true")
	params.Set("automatic_payment_methods[enabled]", "true")
	params.Set("automatic_payment_methods[allow_redirects]", "never")
	params.Set("metadata[contact_id]", *record.RecordID)
	params.Set("metadata[plan]", string(record.ActivePlan()))
	if record.BillingEmail != "" {
		params.Set("receipt_email", record.BillingEmail)
	}

	resp, err := g.doPost(ctx, "/v1/payment_intents", params)
	if err != nil {
		return types.PaymentResult{}, g.wrapTransportError("Charge", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		result, herr := g.handleChargeError(resp)
		if herr != nil {
			return types.PaymentResult{}, herr
		}
		return result, nil
	}

	var intent struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return types.PaymentResult{}, types.NewAppError(types.ErrCodeUpstreamPayment, "failed to decode payment intent response", err)
	}

	if intent.Status != "succeeded" {
		g.logger.WarnContext(ctx, "payment intent not settled",
			"intent_id", intent.ID,
			"status", intent.Status,
		)
		return types.PaymentResult{Success: false, Error: fmt.Sprintf("payment not completed (status %s)", intent.Status)}, nil
	}

	return types.PaymentResult{Success: true, TransactionID: intent.ID}, nil
}

// createPaymentMethod tokenizes raw card data. Returns the payment method ID,
// or a non-empty decline message when Stripe rejects the card itself.
func (g *StripeGateway) createPaymentMethod(ctx context.Context, card types.CardDetails) (string, string, error) {
	params := url.Values{}
	params.Set("type", "card")
	params.Set("card[number]", card.Number.Unmask())
	params.Set("card[cvc]", card.Code.Unmask())
	params.Set("card[exp_month]", strconv.Itoa(card.ExpireMonth))
	params.Set("card[exp_year]", strconv.Itoa(card.ExpireYear))

	resp, err := g.doPost(ctx, "/v1/payment_methods", params)
	if err != nil {
		return "", "", g.wrapTransportError("createPaymentMethod", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var stripeErr stripeErrorResponse
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		if jsonErr := json.Unmarshal(body, &stripeErr); jsonErr == nil && stripeErr.Error.Type == "card_error" {
			return "", declineMessage(&stripeErr.Error), nil
		}
		return "", "", types.NewAppError(
			types.ErrCodeUpstreamPayment,
			fmt.Sprintf("stripe payment method creation returned %d", resp.StatusCode),
			nil,
		)
	}

	var pm struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&pm); err != nil {
		return "", "", types.NewAppError(types.ErrCodeUpstreamPayment, "failed to decode payment method response", err)
	}
	return pm.ID, "", nil
}

// doPost performs an authenticated POST to the Stripe API with a
// form-encoded body.
func (g *StripeGateway) doPost(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+g.secretKey.Unmask())
	req.Header.Set("Stripe-Version", stripe.APIVersion)
	return g.base.Do(req)
}

// stripeErrorResponse represents the JSON error body returned by the Stripe API.
type stripeErrorResponse struct {
	Error stripeErrorBody `json:"error"`
}

type stripeErrorBody struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	DeclineCode string `json:"decline_code"`
	Message     string `json:"message"`
}

func declineMessage(e *stripeErrorBody) string {
	if e.Message != "" {
		return e.Message
	}
	return "card declined"
}

// handleChargeError maps a non-200 payment intent response. Card declines are
// results, not errors; everything else becomes an upstream AppError.
func (g *StripeGateway) handleChargeError(resp *http.Response) (types.PaymentResult, error) {
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 8192))
	if readErr != nil {
		return types.PaymentResult{}, types.NewAppError(
			types.ErrCodeUpstreamPayment,
			fmt.Sprintf("stripe returned status %d and response body was unreadable", resp.StatusCode),
			readErr,
		)
	}

	var stripeErr stripeErrorResponse
	if jsonErr := json.Unmarshal(body, &stripeErr); jsonErr != nil {
		return types.PaymentResult{}, types.NewAppError(
			types.ErrCodeUpstreamPayment,
			fmt.Sprintf("stripe returned status %d with non-JSON body", resp.StatusCode),
			jsonErr,
		)
	}

	if stripeErr.Error.Type == "card_error" || stripeErr.Error.Code == "card_declined" || stripeErr.Error.DeclineCode != "" {
		return types.PaymentResult{Success: false, Error: declineMessage(&stripeErr.Error)}, nil
	}

	return types.PaymentResult{}, types.NewAppError(
		types.ErrCodeUpstreamPayment,
		fmt.Sprintf("stripe error (%d): %s", resp.StatusCode, stripeErr.Error.Message),
		nil,
	)
}

// wrapTransportError wraps a BaseClient transport error with context.
func (g *StripeGateway) wrapTransportError(operation string, err error) error {
	if _, ok := err.(*types.AppError); ok {
		return err
	}
	return types.NewAppError(
		types.ErrCodeUpstreamPayment,
		fmt.Sprintf("%s: stripe request failed: %v", operation, err),
		err,
	)
}
