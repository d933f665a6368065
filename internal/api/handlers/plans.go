package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"onboard/internal/billing"
	"onboard/internal/core"
	"onboard/internal/session"
	"onboard/internal/types"
)

// PlanHandler serves the static plan catalog, with effective pricing applied
// when the caller's session carries an affiliate code.
type PlanHandler struct {
	catalog  billing.Catalog
	resolver *billing.Resolver
	sessions *session.Manager
	logger   *slog.Logger
}

// NewPlanHandler creates a PlanHandler with the provided dependencies.
func NewPlanHandler(
	catalog billing.Catalog,
	resolver *billing.Resolver,
	sessions *session.Manager,
	logger *slog.Logger,
) *PlanHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlanHandler{
		catalog:  catalog,
		resolver: resolver,
		sessions: sessions,
		logger:   logger,
	}
}

// RegisterRoutes mounts the plan endpoints onto the mux.
func (h *PlanHandler) RegisterRoutes(r chi.Router) {
	r.Get("/plans", h.HandleList)
}

// planResponse is one catalog entry plus its resolved pricing for the caller.
type planResponse struct {
	types.PlanInfo
	// EffectivePrice is the monthly price after any affiliate override;
	// nil marks an inquire-only tier for this caller.
	EffectivePrice *int `json:"effective_price"`
	// EffectiveYearlyTotal is the yearly total after any affiliate override.
	EffectiveYearlyTotal *int `json:"effective_yearly_total"`
	HasDiscount          bool `json:"has_discount"`
	Inquire              bool `json:"inquire"`
}

// HandleList handles GET /v1/plans.
// A request without a session sees standard pricing; a session with a
// captured affiliate code sees that affiliate's overrides.
func (h *PlanHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	aff := ""
	if id := types.GetSessionID(r.Context()); id != "" {
		if state, err := h.sessions.Get(r.Context(), id); err == nil {
			aff = state.Record.AffiliateCodeValue()
		}
	}

	plans := h.catalog.All()
	resp := make([]planResponse, 0, len(plans))
	for _, p := range plans {
		resp = append(resp, planResponse{
			PlanInfo:             p,
			EffectivePrice:       h.resolver.EffectivePrice(p.Key, aff),
			EffectiveYearlyTotal: h.resolver.EffectiveYearlyTotal(p.Key, aff),
			HasDiscount:          h.resolver.HasDiscount(p.Key, aff),
			Inquire:              h.resolver.IsInquire(p.Key, aff),
		})
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: resp})
}
