package billing

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// GroupRegistrar creates company groups. Registration is transactional
// because the one-role-per-company invariant is checked and written in
// the same unit.
type GroupRegistrar interface {
	RegisterGroup(ctx context.Context, name string, principalID uuid.UUID, memberIDs []uuid.UUID) (*CompanyGroup, error)
}

// Handler exposes the billing engine over HTTP. Serialization and the
// production gate on the test-only period override live here, not in
// the engine.
type Handler struct {
	logger        *slog.Logger
	service       *Service
	approvals     *ApprovalWorkflow
	groups        GroupRegistrar
	cache         *Cache
	validate      *validator.Validate
	allowOverride bool
}

// NewHandler builds a Handler instance. allowOverride must be false in
// production deployments so the ?at= reference override is ignored.
func NewHandler(logger *slog.Logger, service *Service, approvals *ApprovalWorkflow, groups GroupRegistrar, cache *Cache, allowOverride bool) *Handler {
	return &Handler{
		logger:        logger,
		service:       service,
		approvals:     approvals,
		groups:        groups,
		cache:         cache,
		validate:      validator.New(),
		allowOverride: allowOverride,
	}
}

// MountRoutes registers billing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/clients/{clientID}/statement", h.clientStatement)
	r.Get("/roster/statement", h.rosterStatement)
	r.Get("/clients/{clientID}/approval", h.approvalState)
	r.Post("/clients/{clientID}/approval", h.approvalTransition)
	r.Post("/groups", h.registerGroup)
}

func (h *Handler) periodOverride(r *http.Request) string {
	if !h.allowOverride {
		return ""
	}
	return r.URL.Query().Get("at")
}

// clientStatement serves the consolidated statement for one client.
// Group principals get the full roll-up; everyone else gets a group
// statement wrapping just their own figures.
func (h *Handler) clientStatement(w http.ResponseWriter, r *http.Request) {
	clientID, err := uuid.Parse(chi.URLParam(r, "clientID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid client id")
		return
	}
	period := h.service.CurrentPeriod(r.Context(), h.periodOverride(r))
	group, err := h.service.RollUp(r.Context(), clientID, period)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, NewGroupStatementView(group))
}

// rosterStatement serves the roster-wide report, via the cache when a
// warm copy exists for the period. dues=1 narrows to clients with
// outstanding activity.
func (h *Handler) rosterStatement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	period := h.service.CurrentPeriod(ctx, h.periodOverride(r))
	dueOnly := r.URL.Query().Get("dues") == "1"

	if cached, err := h.cache.GetRoster(ctx, period.Label); err != nil {
		h.logger.Warn("roster cache read failed", slog.Any("error", err))
	} else if cached != nil {
		h.writeJSON(w, http.StatusOK, NewRosterView(*cached, dueOnly))
		return
	}

	report, err := h.service.Roster(ctx, period)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.cache.SetRoster(ctx, report); err != nil {
		h.logger.Warn("roster cache write failed", slog.Any("error", err))
	}
	h.writeJSON(w, http.StatusOK, NewRosterView(report, dueOnly))
}

type approvalStateResponse struct {
	ClientID string `json:"client_id"`
	Period   string `json:"period"`
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
	Evidence string `json:"evidence,omitempty"`
}

func (h *Handler) approvalState(w http.ResponseWriter, r *http.Request) {
	clientID, err := uuid.Parse(chi.URLParam(r, "clientID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid client id")
		return
	}
	periodLabel := r.URL.Query().Get("period")
	if periodLabel == "" {
		periodLabel = h.service.CurrentPeriod(r.Context(), h.periodOverride(r)).Label
	}
	state, err := h.approvals.State(r.Context(), clientID, periodLabel)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, approvalStateResponse{
		ClientID: state.ClientID.String(),
		Period:   state.PeriodLabel,
		Status:   string(state.Status),
		Reason:   state.Reason,
		Evidence: state.Evidence,
	})
}

type approvalTransitionRequest struct {
	Action   string `json:"action" validate:"required,oneof=approve reject resubmit"`
	Period   string `json:"period" validate:"required,len=7"`
	Reason   string `json:"reason" validate:"required_if=Action reject,max=500"`
	Evidence string `json:"evidence" validate:"max=500"`
}

// approvalTransition is the external workflow surface: the engine
// itself never transitions approval state.
func (h *Handler) approvalTransition(w http.ResponseWriter, r *http.Request) {
	clientID, err := uuid.Parse(chi.URLParam(r, "clientID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid client id")
		return
	}
	var req approvalTransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	var state ApprovalState
	switch req.Action {
	case "approve":
		state, err = h.approvals.Approve(r.Context(), clientID, req.Period)
	case "reject":
		state, err = h.approvals.Reject(r.Context(), clientID, req.Period, req.Reason, req.Evidence)
	case "resubmit":
		state, err = h.approvals.Resubmit(r.Context(), clientID, req.Period)
	}
	if err != nil {
		if errors.Is(err, ErrApprovalTransition) {
			h.writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, approvalStateResponse{
		ClientID: state.ClientID.String(),
		Period:   state.PeriodLabel,
		Status:   string(state.Status),
		Reason:   state.Reason,
		Evidence: state.Evidence,
	})
}

type registerGroupRequest struct {
	Name        string   `json:"name" validate:"required,max=120"`
	PrincipalID string   `json:"principal_id" validate:"required,uuid"`
	MemberIDs   []string `json:"member_ids" validate:"required,min=1,dive,uuid"`
}

type registerGroupResponse struct {
	GroupID     string   `json:"group_id"`
	Name        string   `json:"name"`
	PrincipalID string   `json:"principal_id"`
	MemberIDs   []string `json:"member_ids"`
}

// registerGroup creates a company group. A company already acting as a
// principal or member anywhere is rejected with a conflict.
func (h *Handler) registerGroup(w http.ResponseWriter, r *http.Request) {
	var req registerGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	principalID, err := uuid.Parse(req.PrincipalID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid principal id")
		return
	}
	memberIDs := make([]uuid.UUID, 0, len(req.MemberIDs))
	for _, raw := range req.MemberIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid member id")
			return
		}
		if id == principalID {
			h.writeError(w, http.StatusUnprocessableEntity, "principal cannot be its own member")
			return
		}
		memberIDs = append(memberIDs, id)
	}

	group, err := h.groups.RegisterGroup(r.Context(), req.Name, principalID, memberIDs)
	if err != nil {
		if errors.Is(err, ErrGroupRoleTaken) {
			h.writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.writeServiceError(w, r, err)
		return
	}

	resp := registerGroupResponse{
		GroupID:     group.ID.String(),
		Name:        group.Name,
		PrincipalID: group.PrincipalID.String(),
	}
	for _, id := range group.MemberIDs {
		resp.MemberIDs = append(resp.MemberIDs, id.String())
	}
	h.writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrClientNotFound), errors.Is(err, ErrNotFound):
		h.writeError(w, http.StatusNotFound, "client not found")
	case errors.Is(err, ErrDataAccess):
		h.logger.Error("data access failure", slog.String("path", r.URL.Path), slog.Any("error", err))
		h.writeError(w, http.StatusBadGateway, "data access failure")
	default:
		h.logger.Error("billing handler error", slog.String("path", r.URL.Path), slog.Any("error", err))
		h.writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("encode response", slog.Any("error", err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
