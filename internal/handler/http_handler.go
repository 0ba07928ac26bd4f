// Package handler exposes the approval engine over HTTP.
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/pesio-ai/be-hr-approvals/internal/approval"
	"github.com/pesio-ai/be-hr-approvals/internal/auth"
	"github.com/pesio-ai/be-hr-approvals/internal/errors"
	"github.com/pesio-ai/be-hr-approvals/internal/logger"
	"github.com/pesio-ai/be-hr-approvals/internal/repository"
	"github.com/pesio-ai/be-hr-approvals/internal/service"
)

// HTTPHandler handles HTTP requests.
type HTTPHandler struct {
	workflows   *service.WorkflowService
	escalations *service.EscalationService
	log         *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(workflows *service.WorkflowService, escalations *service.EscalationService, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		workflows:   workflows,
		escalations: escalations,
		log:         log,
	}
}

// Routes registers all endpoints on the router, which the server mounts
// under /api/v1 behind the auth middleware.
func (h *HTTPHandler) Routes(r *mux.Router) {
	r.HandleFunc("/approvals", h.SubmitApproval).Methods(http.MethodPost)
	r.HandleFunc("/approvals", h.ListApprovals).Methods(http.MethodGet)
	r.HandleFunc("/approvals/{id}", h.GetApproval).Methods(http.MethodGet)
	r.HandleFunc("/approvals/{id}/act", h.ActOnApproval).Methods(http.MethodPost)
	r.HandleFunc("/approvals/{id}/history", h.GetApprovalHistory).Methods(http.MethodGet)

	r.HandleFunc("/escalations", h.CreateEscalation).Methods(http.MethodPost)
	r.HandleFunc("/escalations", h.ListEscalations).Methods(http.MethodGet)
	r.HandleFunc("/escalations/{id}", h.GetEscalation).Methods(http.MethodGet)
	r.HandleFunc("/escalations/{id}/act", h.ActOnEscalation).Methods(http.MethodPost)
}

// ── request / response DTOs ───────────────────────────────────────────────────

type submitRequest struct {
	RequestType string         `json:"request_type"`
	ReferenceID *string        `json:"reference_id,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
}

type actRequest struct {
	Action   string  `json:"action"`
	Comments *string `json:"comments,omitempty"`
}

type createEscalationRequest struct {
	TargetID string  `json:"target_id"`
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Reason   string  `json:"reason,omitempty"`
}

type stepResponse struct {
	Name     string                `json:"name"`
	Approver approval.ApproverSpec `json:"approver"`
	Status   approval.StepStatus   `json:"status"`
	ActedBy  *string               `json:"acted_by,omitempty"`
	Comments *string               `json:"comments,omitempty"`
	ActedAt  *time.Time            `json:"acted_at,omitempty"`
}

type workflowResponse struct {
	ID          string                  `json:"id"`
	RequesterID string                  `json:"requester_id"`
	RequestType approval.RequestType    `json:"request_type"`
	ReferenceID *string                 `json:"reference_id,omitempty"`
	Payload     map[string]any          `json:"payload,omitempty"`
	Status      approval.WorkflowStatus `json:"status"`
	Cursor      int                     `json:"cursor"`
	Steps       []stepResponse          `json:"steps"`
	SubmittedAt time.Time               `json:"submitted_at"`
	CompletedAt *time.Time              `json:"completed_at,omitempty"`
}

func toWorkflowResponse(wf *approval.Workflow) *workflowResponse {
	resp := &workflowResponse{
		ID:          wf.ID,
		RequesterID: wf.RequesterID,
		RequestType: wf.RequestType,
		ReferenceID: wf.ReferenceID,
		Payload:     wf.Payload,
		Status:      wf.Status,
		Cursor:      wf.Cursor,
		Steps:       make([]stepResponse, 0, len(wf.Steps)),
		SubmittedAt: wf.SubmittedAt,
		CompletedAt: wf.CompletedAt,
	}
	for _, step := range wf.Steps {
		resp.Steps = append(resp.Steps, stepResponse{
			Name:     step.Name,
			Approver: step.Approver,
			Status:   step.Status,
			ActedBy:  step.ActedBy,
			Comments: step.Comments,
			ActedAt:  step.ActedAt,
		})
	}
	return resp
}

// ── approval workflows ────────────────────────────────────────────────────────

// SubmitApproval opens a new approval workflow for the caller.
func (h *HTTPHandler) SubmitApproval(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.FromContext(r.Context())
	if !ok {
		h.writeError(w, errors.New(errors.ErrCodeUnauthenticated, "no identity"))
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.InvalidInput("body", "invalid JSON"))
		return
	}

	wf, err := h.workflows.Submit(r.Context(), actor, &service.SubmitRequest{
		RequestType: req.RequestType,
		ReferenceID: req.ReferenceID,
		Payload:     req.Payload,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toWorkflowResponse(wf))
}

// ListApprovals serves the inbox and sent views.
func (h *HTTPHandler) ListApprovals(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.FromContext(r.Context())
	if !ok {
		h.writeError(w, errors.New(errors.ErrCodeUnauthenticated, "no identity"))
		return
	}

	view := r.URL.Query().Get("view")
	switch view {
	case "", "inbox":
		items, err := h.workflows.Inbox(r.Context(), actor)
		if err != nil {
			h.writeError(w, err)
			return
		}
		if items == nil {
			items = []*repository.InboxItem{}
		}
		h.writeJSON(w, http.StatusOK, map[string]any{"view": "inbox", "items": items})
	case "sent":
		workflows, err := h.workflows.Sent(r.Context(), actor)
		if err != nil {
			h.writeError(w, err)
			return
		}
		items := make([]*workflowResponse, 0, len(workflows))
		for _, wf := range workflows {
			items = append(items, toWorkflowResponse(wf))
		}
		h.writeJSON(w, http.StatusOK, map[string]any{"view": "sent", "items": items})
	default:
		h.writeError(w, errors.InvalidInput("view", "must be 'inbox' or 'sent'"))
	}
}

// GetApproval returns one workflow with its steps.
func (h *HTTPHandler) GetApproval(w http.ResponseWriter, r *http.Request) {
	wf, err := h.workflows.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toWorkflowResponse(wf))
}

// ActOnApproval applies an approve/reject action to the active step.
func (h *HTTPHandler) ActOnApproval(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.FromContext(r.Context())
	if !ok {
		h.writeError(w, errors.New(errors.ErrCodeUnauthenticated, "no identity"))
		return
	}

	var req actRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.InvalidInput("body", "invalid JSON"))
		return
	}

	wf, err := h.workflows.Act(r.Context(), mux.Vars(r)["id"], actor, req.Action, req.Comments)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":   wf.Status,
		"workflow": toWorkflowResponse(wf),
	})
}

// GetApprovalHistory returns the audit trail for a workflow.
func (h *HTTPHandler) GetApprovalHistory(w http.ResponseWriter, r *http.Request) {
	trail, err := h.workflows.History(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	if trail == nil {
		trail = []*repository.AuditEntry{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"entries": trail})
}

// ── escalation chains ─────────────────────────────────────────────────────────

// CreateEscalation opens a leave-balance adjustment chain (admin only).
func (h *HTTPHandler) CreateEscalation(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.FromContext(r.Context())
	if !ok {
		h.writeError(w, errors.New(errors.ErrCodeUnauthenticated, "no identity"))
		return
	}

	var req createEscalationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.InvalidInput("body", "invalid JSON"))
		return
	}

	chain, err := h.escalations.Create(r.Context(), actor, &service.CreateEscalationRequest{
		TargetID: req.TargetID,
		Category: req.Category,
		Amount:   req.Amount,
		Reason:   req.Reason,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, chain)
}

// ListEscalations returns the chains awaiting the caller's stage.
func (h *HTTPHandler) ListEscalations(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.FromContext(r.Context())
	if !ok {
		h.writeError(w, errors.New(errors.ErrCodeUnauthenticated, "no identity"))
		return
	}

	chains, err := h.escalations.PendingForActor(r.Context(), actor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if chains == nil {
		chains = []*repository.EscalationChain{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"items": chains})
}

// GetEscalation returns a chain with its audit trail.
func (h *HTTPHandler) GetEscalation(w http.ResponseWriter, r *http.Request) {
	chain, trail, err := h.escalations.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"chain":       chain,
		"audit_trail": trail,
	})
}

// ActOnEscalation applies one role-gated transition to a chain.
func (h *HTTPHandler) ActOnEscalation(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.FromContext(r.Context())
	if !ok {
		h.writeError(w, errors.New(errors.ErrCodeUnauthenticated, "no identity"))
		return
	}

	var req actRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.InvalidInput("body", "invalid JSON"))
		return
	}

	chain, err := h.escalations.Advance(r.Context(), mux.Vars(r)["id"], actor, req.Action, req.Comments)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"status": chain.Status,
		"chain":  chain,
	})
}

// ── helpers ───────────────────────────────────────────────────────────────────

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response body")
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Request failed")
	}

	h.writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    errors.CodeOf(err),
			"message": errors.UserMessage(err),
		},
	})
}
