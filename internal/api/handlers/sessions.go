// Package handlers contains the HTTP handler implementations for the
// onboarding API: session lifecycle and step navigation, quote and slug
// availability, checkout, and the plan catalog.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"onboard/internal/billing"
	"onboard/internal/core"
	"onboard/internal/session"
	"onboard/internal/types"
	"onboard/internal/wizard"
)

// AutosaveDispatcher is the slice of the autosave orchestrator the handlers
// need. Defined locally to avoid tight coupling per the handler injection
// pattern.
type AutosaveDispatcher interface {
	// Dispatch fires the checkpoint save for a step transition. Non-blocking.
	Dispatch(ctx context.Context, sessionID string, prev, next int, record types.AnswerRecord)
	// DispatchComplete fires the final completion save. Non-blocking.
	DispatchComplete(ctx context.Context, sessionID string, record types.AnswerRecord)
}

// SessionCookie describes how the session cookie is issued at session start.
type SessionCookie struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

// SessionHandler maps HTTP requests onto the wizard state machine.
type SessionHandler struct {
	sessions  *session.Manager
	autosave  AutosaveDispatcher
	calc      *billing.Calculator
	resolver  *billing.Resolver
	slugCheck *wizard.AvailabilityChecker
	cookie    SessionCookie
	validator *core.Validator
	logger    *slog.Logger
}

// NewSessionHandler creates a SessionHandler with the provided dependencies.
func NewSessionHandler(
	sessions *session.Manager,
	autosave AutosaveDispatcher,
	calc *billing.Calculator,
	resolver *billing.Resolver,
	slugCheck *wizard.AvailabilityChecker,
	cookie SessionCookie,
	val *core.Validator,
	logger *slog.Logger,
) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{
		sessions:  sessions,
		autosave:  autosave,
		calc:      calc,
		resolver:  resolver,
		slugCheck: slugCheck,
		cookie:    cookie,
		validator: val,
		logger:    logger,
	}
}

// RegisterRoutes mounts the session endpoints onto the mux.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.HandleStart)
		r.Route("/current", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Patch("/", h.HandleUpdate)
			r.Post("/advance", h.HandleAdvance)
			r.Post("/retreat", h.HandleRetreat)
			r.Post("/reset", h.HandleReset)
			r.Get("/quote", h.HandleQuote)
			r.Get("/slug-availability", h.HandleSlugAvailability)
		})
	})
}

// stateResponse is the wire shape of the wizard state returned by every
// navigation endpoint.
type stateResponse struct {
	Step       int                `json:"step"`
	TotalSteps int                `json:"total_steps"`
	Record     types.AnswerRecord `json:"record"`
}

func newStateResponse(s wizard.State) stateResponse {
	return stateResponse{
		Step:       s.Step,
		TotalSteps: wizard.TotalSteps,
		Record:     s.Record,
	}
}

// HandleStart handles POST /v1/sessions.
// It seeds a fresh session from the plan/aff entry-URL query parameters,
// stores it, and issues the session cookie. Starting a new session always
// creates a fresh one; an existing cookie is simply replaced.
func (h *SessionHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	seed := wizard.SeedParams{
		Plan:          r.URL.Query().Get("plan"),
		AffiliateCode: r.URL.Query().Get("aff"),
	}
	state := wizard.NewState(seed)

	id := uuid.NewString()
	if err := h.sessions.Create(r.Context(), id, state); err != nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeInternalStore,
			"could not create session",
			err,
		))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    id,
		Path:     "/",
		MaxAge:   int(h.cookie.TTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: newStateResponse(state)})
}

// HandleGet handles GET /v1/sessions/current.
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	_, state, err := h.loadSession(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: newStateResponse(state)})
}

// HandleUpdate handles PATCH /v1/sessions/current.
// It merges the patch into the record and re-derives the recommended plan.
// An empty patch is a no-op that returns the unchanged state.
func (h *SessionHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := h.sessionID(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var patch types.AnswerPatch
	if err := core.DecodeJSON(w, r, &patch); err != nil {
		core.Error(w, r, err)
		return
	}

	if patch.IsEmpty() {
		state, err := h.getState(r.Context(), id)
		if err != nil {
			core.Error(w, r, err)
			return
		}
		core.JSON(w, r, http.StatusOK, core.APIResponse{Data: newStateResponse(state)})
		return
	}

	state, err := h.sessions.Mutate(r.Context(), id, func(s wizard.State) (wizard.State, error) {
		return wizard.Update(s, patch), nil
	})
	if err != nil {
		core.Error(w, r, storeError(err))
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: newStateResponse(state)})
}

// HandleAdvance handles POST /v1/sessions/current/advance.
// After the transition commits, the matching autosave checkpoint (if any) is
// dispatched asynchronously; its outcome never affects the response.
func (h *SessionHandler) HandleAdvance(w http.ResponseWriter, r *http.Request) {
	id, err := h.sessionID(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var prev int
	state, err := h.sessions.Mutate(r.Context(), id, func(s wizard.State) (wizard.State, error) {
		prev = s.Step
		return wizard.Advance(s), nil
	})
	if err != nil {
		core.Error(w, r, storeError(err))
		return
	}

	h.autosave.Dispatch(r.Context(), id, prev, state.Step, state.Record)

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: newStateResponse(state)})
}

// HandleRetreat handles POST /v1/sessions/current/retreat.
// Retreating never autosaves.
func (h *SessionHandler) HandleRetreat(w http.ResponseWriter, r *http.Request) {
	id, err := h.sessionID(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	state, err := h.sessions.Mutate(r.Context(), id, func(s wizard.State) (wizard.State, error) {
		return wizard.Retreat(s), nil
	})
	if err != nil {
		core.Error(w, r, storeError(err))
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: newStateResponse(state)})
}

// resetRequest gates the destructive reset behind explicit confirmation.
type resetRequest struct {
	Confirm bool `json:"confirm"`
}

// HandleReset handles POST /v1/sessions/current/reset.
// The body must carry {"confirm": true}; anything else is rejected. Reset
// restores the default record and the first step and cannot be undone.
func (h *SessionHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	id, err := h.sessionID(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req resetRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if !req.Confirm {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationConfirmNeeded,
			"reset requires explicit confirmation",
			nil,
		))
		return
	}

	state, err := h.sessions.Mutate(r.Context(), id, func(s wizard.State) (wizard.State, error) {
		return wizard.Reset(), nil
	})
	if err != nil {
		core.Error(w, r, storeError(err))
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: newStateResponse(state)})
}

// pricingDisplay carries the resolved pricing facts the checkout UI renders:
// the standard price for strikethrough display, the effective price under any
// affiliate override, and the inquire flag that routes to lead capture.
type pricingDisplay struct {
	Plan             types.PlanKey `json:"plan"`
	StandardMonthly  int           `json:"standard_monthly"`
	StandardYearly   int           `json:"standard_yearly"`
	EffectiveMonthly *int          `json:"effective_monthly"`
	EffectiveYearly  *int          `json:"effective_yearly"`
	HasDiscount      bool          `json:"has_discount"`
	Inquire          bool          `json:"inquire"`
}

// quoteResponse is the full cost picture for the current record.
type quoteResponse struct {
	Breakdown types.CostBreakdown    `json:"breakdown"`
	Lines     []billing.OrderLine    `json:"lines"`
	Totals    billing.CheckoutTotals `json:"totals"`
	Pricing   pricingDisplay         `json:"pricing"`
}

// HandleQuote handles GET /v1/sessions/current/quote.
func (h *SessionHandler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	_, state, err := h.loadSession(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	record := state.Record
	active := record.ActivePlan()
	aff := record.AffiliateCodeValue()

	resp := quoteResponse{
		Breakdown: h.calc.Calculate(&record),
		Lines:     h.calc.BuildOrderLines(&record),
		Totals:    h.calc.Totals(&record),
		Pricing: pricingDisplay{
			Plan:             active,
			StandardMonthly:  h.resolver.StandardPrice(active),
			StandardYearly:   h.resolver.StandardYearlyTotal(active),
			EffectiveMonthly: h.resolver.EffectivePrice(active, aff),
			EffectiveYearly:  h.resolver.EffectiveYearlyTotal(active, aff),
			HasDiscount:      h.resolver.HasDiscount(active, aff),
			Inquire:          h.resolver.IsInquire(active, aff),
		},
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: resp})
}

// slugAvailabilityResponse reports the availability of a candidate subdomain.
type slugAvailabilityResponse struct {
	Slug         string                 `json:"slug"`
	Availability types.SlugAvailability `json:"availability"`
}

// HandleSlugAvailability handles GET /v1/sessions/current/slug-availability.
// The check is debounced and staleness-guarded: if a newer candidate arrives
// while this one is waiting or in flight, the stale result is reported as
// unknown and never written to the record.
func (h *SessionHandler) HandleSlugAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := h.sessionID(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	slug := r.URL.Query().Get("slug")
	if slug == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"slug query parameter is required",
			nil,
		))
		return
	}

	availability, current := h.slugCheck.Check(r.Context(), id, slug)
	if !current {
		core.JSON(w, r, http.StatusOK, core.APIResponse{Data: slugAvailabilityResponse{
			Slug:         slug,
			Availability: types.SlugUnknown,
		}})
		return
	}

	// Persist the result, but only if the record still holds this candidate.
	// The user may have typed a new slug through PATCH while we were checking.
	_, err = h.sessions.Mutate(r.Context(), id, func(s wizard.State) (wizard.State, error) {
		if s.Record.Slug == slug {
			s.Record.SlugAvailable = availability
		}
		return s, nil
	})
	if err != nil {
		core.Error(w, r, storeError(err))
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: slugAvailabilityResponse{
		Slug:         slug,
		Availability: availability,
	}})
}

// sessionID extracts the session ID resolved by the cookie middleware.
func (h *SessionHandler) sessionID(r *http.Request) (string, error) {
	id := types.GetSessionID(r.Context())
	if id == "" {
		return "", types.NewAppError(
			types.ErrCodeSessionMissing,
			"no session cookie present",
			nil,
		)
	}
	return id, nil
}

// getState loads a session's state, mapping store errors to typed codes.
func (h *SessionHandler) getState(ctx context.Context, id string) (wizard.State, error) {
	state, err := h.sessions.Get(ctx, id)
	if err != nil {
		return wizard.State{}, storeError(err)
	}
	return state, nil
}

// loadSession combines sessionID and getState.
func (h *SessionHandler) loadSession(r *http.Request) (string, wizard.State, error) {
	id, err := h.sessionID(r)
	if err != nil {
		return "", wizard.State{}, err
	}
	state, err := h.getState(r.Context(), id)
	if err != nil {
		return "", wizard.State{}, err
	}
	return id, state, nil
}

// storeError maps session store failures onto the API error codes.
func storeError(err error) error {
	if errors.Is(err, session.ErrNotFound) {
		return types.NewAppError(
			types.ErrCodeSessionNotFound,
			"session has expired or does not exist",
			err,
		)
	}
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return types.NewAppError(
		types.ErrCodeInternalStore,
		"session store unavailable",
		err,
	)
}
