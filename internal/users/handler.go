package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/orgtask/orgtask/internal/platform/httpx"
	"github.com/orgtask/orgtask/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listUsers)
	r.Post("/", h.createUser)
	r.Post("/{id}/deactivate", h.deactivateUser)
	r.Post("/{id}/reactivate", h.reactivateUser)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	var (
		users []User
		err   error
	)
	if r.URL.Query().Get("status") == "inactive" {
		users, err = h.service.ListInactive(r.Context())
	} else {
		users, err = h.service.ListActive(r.Context())
	}
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if users == nil {
		users = []User{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": users})
}

type createUserRequest struct {
	Username string   `json:"username" validate:"required"`
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=8"`
	Roles    []string `json:"roles"`
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "username, email and password are required")
		return
	}
	user, err := h.service.CreateAccount(r.Context(), req.Username, req.Email, req.Password, req.Roles)
	if err != nil {
		h.logger.Warn("create user failed", slog.String("username", req.Username), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

type acknowledgeRequest struct {
	Acknowledged bool `json:"acknowledged"`
}

func (h *Handler) deactivateUser(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handler) reactivateUser(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	var req acknowledgeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	var user User
	if active {
		user, err = h.service.Reactivate(r.Context(), id, req.Acknowledged)
	} else {
		user, err = h.service.Deactivate(r.Context(), id, req.Acknowledged)
	}
	if err != nil {
		if errors.Is(err, shared.ErrNotAcknowledged) {
			httpx.Problem(w, http.StatusPreconditionRequired, "Acknowledgment Required", err.Error())
			return
		}
		h.logger.Warn("toggle user active failed", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}
