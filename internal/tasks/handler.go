package tasks

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/orgtask/orgtask/internal/platform/httpx"
	"github.com/orgtask/orgtask/internal/shared"
)

// TaskListerPort lists created tasks for observability of commit results.
type TaskListerPort interface {
	ListTasks(ctx context.Context, page shared.Pagination) ([]Task, int, error)
}

// ApprovalHistoryPort reads the recorded gate decisions for one workflow.
type ApprovalHistoryPort interface {
	List(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error)
}

// Handler manages task and task-workflow endpoints.
type Handler struct {
	logger    *slog.Logger
	engine    *Engine
	lister    TaskListerPort
	approvals ApprovalHistoryPort
}

// NewHandler builds Handler instance. The approval history may be nil, in
// which case the approvals endpoint serves an empty list.
func NewHandler(logger *slog.Logger, engine *Engine, lister TaskListerPort, approvals ApprovalHistoryPort) *Handler {
	return &Handler{logger: logger, engine: engine, lister: lister, approvals: approvals}
}

// MountTaskRoutes registers task read routes.
func (h *Handler) MountTaskRoutes(r chi.Router) {
	r.Get("/", h.listTasks)
}

// MountWorkflowRoutes registers confirmation-gate workflow routes.
func (h *Handler) MountWorkflowRoutes(r chi.Router) {
	r.Post("/", h.createWorkflow)
	r.Get("/{id}", h.getWorkflow)
	r.Put("/{id}", h.updateDraft)
	r.Post("/{id}/review", h.requestReview)
	r.Post("/{id}/ack", h.acknowledge)
	r.Post("/{id}/back", h.back)
	r.Post("/{id}/commit", h.commit)
	r.Get("/{id}/approvals", h.listApprovals)
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	pagination := shared.NewPagination(page, perPage, 0)

	tasks, total, err := h.lister.ListTasks(r.Context(), pagination)
	if err != nil {
		h.logger.Error("list tasks failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if tasks == nil {
		tasks = []Task{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"tasks":      tasks,
		"pagination": shared.NewPagination(pagination.Page, pagination.PerPage, total),
	})
}

func (h *Handler) createWorkflow(w http.ResponseWriter, r *http.Request) {
	var draft Draft
	if err := httpx.DecodeJSON(r, &draft); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	snap := h.engine.Create(draft)
	httpx.JSON(w, http.StatusCreated, snap)
}

func (h *Handler) getWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := h.workflowID(w, r)
	if !ok {
		return
	}
	snap, err := h.engine.Get(id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}

func (h *Handler) updateDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := h.workflowID(w, r)
	if !ok {
		return
	}
	var draft Draft
	if err := httpx.DecodeJSON(r, &draft); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	snap, err := h.engine.UpdateDraft(id, draft)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}

func (h *Handler) requestReview(w http.ResponseWriter, r *http.Request) {
	id, ok := h.workflowID(w, r)
	if !ok {
		return
	}
	snap, err := h.engine.RequestReview(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}

type acknowledgeRequest struct {
	Acknowledged bool `json:"acknowledged"`
}

func (h *Handler) acknowledge(w http.ResponseWriter, r *http.Request) {
	id, ok := h.workflowID(w, r)
	if !ok {
		return
	}
	var req acknowledgeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	snap, err := h.engine.Acknowledge(r.Context(), id, req.Acknowledged)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}

func (h *Handler) back(w http.ResponseWriter, r *http.Request) {
	id, ok := h.workflowID(w, r)
	if !ok {
		return
	}
	snap, err := h.engine.Back(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}

func (h *Handler) commit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.workflowID(w, r)
	if !ok {
		return
	}
	snap, err := h.engine.Commit(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrCommitInFlight) {
			httpx.JSON(w, http.StatusAccepted, snap)
			return
		}
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}

type approvalEntry struct {
	Actor  string    `json:"actor"`
	Action string    `json:"action"`
	Note   string    `json:"note,omitempty"`
	At     time.Time `json:"at"`
}

func (h *Handler) listApprovals(w http.ResponseWriter, r *http.Request) {
	id, ok := h.workflowID(w, r)
	if !ok {
		return
	}
	if _, err := h.engine.Get(id); err != nil {
		h.respondDomainError(w, err)
		return
	}
	entries := []approvalEntry{}
	if h.approvals != nil {
		logs, err := h.approvals.List(r.Context(), approvalModule, id)
		if err != nil {
			h.logger.Error("list approvals failed", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		for _, l := range logs {
			entries = append(entries, approvalEntry{Actor: l.Actor, Action: string(l.Action), Note: l.Note, At: l.At})
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"approvals": entries})
}

func (h *Handler) workflowID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid workflow id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNoTarget):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrEmptyTarget):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Empty Target", err.Error())
	case errors.Is(err, shared.ErrWorkflowState):
		httpx.Problem(w, http.StatusConflict, "Invalid Workflow State", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}
