package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"onboard/internal/billing"
	"onboard/internal/core"
	"onboard/internal/external"
	"onboard/internal/session"
	"onboard/internal/types"
	"onboard/internal/wizard"
)

// CheckoutHandler serves the terminal wizard step: view resolution, card
// payment, and lead-capture inquiry for inquire-only plans.
type CheckoutHandler struct {
	sessions    *session.Manager
	resolver    *billing.Resolver
	calc        *billing.Calculator
	payments    external.PaymentGateway
	provisioner external.Provisioner
	autosave    AutosaveDispatcher
	validator   *core.Validator
	logger      *slog.Logger

	nowFn func() time.Time
}

// NewCheckoutHandler creates a CheckoutHandler with the provided dependencies.
func NewCheckoutHandler(
	sessions *session.Manager,
	resolver *billing.Resolver,
	calc *billing.Calculator,
	payments external.PaymentGateway,
	provisioner external.Provisioner,
	autosave AutosaveDispatcher,
	val *core.Validator,
	logger *slog.Logger,
) *CheckoutHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutHandler{
		sessions:    sessions,
		resolver:    resolver,
		calc:        calc,
		payments:    payments,
		provisioner: provisioner,
		autosave:    autosave,
		validator:   val,
		logger:      logger,
		nowFn:       time.Now,
	}
}

// RegisterRoutes mounts the checkout endpoints onto the mux.
func (h *CheckoutHandler) RegisterRoutes(r chi.Router) {
	r.Route("/sessions/current/checkout", func(r chi.Router) {
		r.Get("/", h.HandleView)
		r.Post("/payment", h.HandlePayment)
		r.Post("/inquiry", h.HandleInquiry)
	})
}

// checkoutResponse describes the terminal step for rendering: which sub-view
// to show and, for the payment view, what the customer will be charged.
type checkoutResponse struct {
	View          types.CheckoutViewKind `json:"view"`
	Lines         []billing.OrderLine    `json:"lines"`
	Totals        billing.CheckoutTotals `json:"totals"`
	TransactionID *string                `json:"transaction_id,omitempty"`
	PaymentError  *string                `json:"payment_error,omitempty"`
}

func (h *CheckoutHandler) checkoutView(record *types.AnswerRecord) checkoutResponse {
	return checkoutResponse{
		View:          wizard.CheckoutView(h.resolver, record),
		Lines:         h.calc.BuildOrderLines(record),
		Totals:        h.calc.Totals(record),
		TransactionID: record.TransactionID,
		PaymentError:  record.PaymentError,
	}
}

// HandleView handles GET /v1/sessions/current/checkout.
func (h *CheckoutHandler) HandleView(w http.ResponseWriter, r *http.Request) {
	_, state, err := h.load(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: h.checkoutView(&state.Record)})
}

// paymentRequest is the card payment submission. The card never touches the
// session record; it flows straight through to the gateway.
type paymentRequest struct {
	Card         types.CardDetails `json:"card"`
	BillingEmail string            `json:"billing_email,omitempty"`
}

// HandlePayment handles POST /v1/sessions/current/checkout/payment.
//
// Flow: claim the charge under the session lock (not completed, not an
// inquire plan, no charge already in flight), then charge, then on success
// record the outcome, provision the workspace, and fire the completion save.
// A declined card records payment_status=failed with the gateway's message
// and returns 402; the wizard does not advance and the user may retry.
func (h *CheckoutHandler) HandlePayment(w http.ResponseWriter, r *http.Request) {
	id := types.GetSessionID(r.Context())
	if id == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeSessionMissing,
			"no session cookie present",
			nil,
		))
		return
	}

	var req paymentRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req.Card); err != nil {
		core.Error(w, r, err)
		return
	}

	// Claim the charge before calling the gateway. The guards and the
	// pending marker run inside one Mutate, so a second submission racing
	// this one cannot pass the guards and charge the card again.
	pending := types.PaymentPending
	state, err := h.sessions.Mutate(r.Context(), id, func(s wizard.State) (wizard.State, error) {
		rec := s.Record
		if rec.CompletedAt != nil || (rec.PaymentStatus != nil && *rec.PaymentStatus == types.PaymentCompleted) {
			return s, types.NewAppError(
				types.ErrCodeConflictCompleted,
				"onboarding is already completed",
				nil,
			)
		}
		if rec.PaymentStatus != nil && *rec.PaymentStatus == types.PaymentPending {
			return s, types.NewAppError(
				types.ErrCodeConflictPaymentInProgress,
				"a payment for this session is already being processed",
				nil,
			)
		}
		if h.resolver.IsInquire(rec.ActivePlan(), rec.AffiliateCodeValue()) {
			return s, types.NewAppError(
				types.ErrCodeConflictInquire,
				"this plan is not directly purchasable; submit an inquiry instead",
				nil,
			)
		}
		s.Record.PaymentStatus = &pending
		if req.BillingEmail != "" {
			s.Record.BillingEmail = req.BillingEmail
		}
		return s, nil
	})
	if err != nil {
		core.Error(w, r, storeError(err))
		return
	}
	record := state.Record

	result, err := h.payments.Charge(r.Context(), req.Card, &record)
	if err != nil {
		// Release the claim and record the failure so the customer sees
		// it on the checkout view, then surface the upstream error.
		h.recordFailure(r.Context(), id, "payment could not be processed")
		core.Error(w, r, err)
		return
	}

	if !result.Success {
		msg := result.Error
		if err := h.recordFailure(r.Context(), id, msg); err != nil {
			core.Error(w, r, storeError(err))
			return
		}

		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodePaymentDeclined,
			"payment was declined",
			nil,
			map[string]any{"reason": msg},
		))
		return
	}

	completed := types.PaymentCompleted
	now := h.nowFn().UTC()
	txn := result.TransactionID
	state, err = h.sessions.Mutate(r.Context(), id, func(s wizard.State) (wizard.State, error) {
		if req.BillingEmail != "" {
			s.Record.BillingEmail = req.BillingEmail
		}
		s.Record.PaymentStatus = &completed
		s.Record.TransactionID = &txn
		s.Record.PaymentError = nil
		s.Record.CompletedAt = &now
		return s, nil
	})
	if err != nil {
		core.Error(w, r, storeError(err))
		return
	}

	// Provision the workspace now that the charge is committed. A failure
	// here must not unwind the payment; it is logged for manual follow-up.
	if err := h.provisioner.Provision(r.Context(), &state.Record); err != nil {
		h.logger.Error("workspace provisioning failed after successful charge",
			"session_id", id,
			"transaction_id", txn,
			"error", err,
		)
	}

	h.autosave.DispatchComplete(r.Context(), id, state.Record)

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: h.checkoutView(&state.Record)})
}

// recordFailure marks the charge attempt failed, releasing the pending claim
// so the customer can retry.
func (h *CheckoutHandler) recordFailure(ctx context.Context, id, msg string) error {
	failed := types.PaymentFailed
	_, err := h.sessions.Mutate(ctx, id, func(s wizard.State) (wizard.State, error) {
		s.Record.PaymentStatus = &failed
		s.Record.PaymentError = &msg
		return s, nil
	})
	if err != nil {
		h.logger.Error("failed to record payment failure",
			"session_id", id,
			"error", err,
		)
	}
	return err
}

// inquiryRequest is the lead-capture submission for inquire plans. The
// contact details already live in the record; only an optional free-form
// message accompanies the submission.
type inquiryRequest struct {
	Message string `json:"message,omitempty" validate:"max=2000"`
}

// HandleInquiry handles POST /v1/sessions/current/checkout/inquiry.
// Inquiries never charge a card: the record is stamped completed and the
// completion save (status, needs-booking, timestamp) fires asynchronously.
func (h *CheckoutHandler) HandleInquiry(w http.ResponseWriter, r *http.Request) {
	id, state, err := h.load(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if state.Record.CompletedAt != nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeConflictCompleted,
			"onboarding is already completed",
			nil,
		))
		return
	}

	var req inquiryRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	if req.Message != "" {
		h.logger.Info("inquiry submitted",
			"session_id", id,
			"plan", state.Record.ActivePlan(),
			"message", req.Message,
		)
	}

	now := h.nowFn().UTC()
	state, err = h.sessions.Mutate(r.Context(), id, func(s wizard.State) (wizard.State, error) {
		s.Record.CompletedAt = &now
		return s, nil
	})
	if err != nil {
		core.Error(w, r, storeError(err))
		return
	}

	h.autosave.DispatchComplete(r.Context(), id, state.Record)

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: h.checkoutView(&state.Record)})
}

// load resolves the session cookie and fetches the current state.
func (h *CheckoutHandler) load(r *http.Request) (string, wizard.State, error) {
	id := types.GetSessionID(r.Context())
	if id == "" {
		return "", wizard.State{}, types.NewAppError(
			types.ErrCodeSessionMissing,
			"no session cookie present",
			nil,
		)
	}
	state, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		return "", wizard.State{}, storeError(err)
	}
	return id, state, nil
}
