package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cselefendi/recipe-app-api/internal/handler/dto"
	"github.com/cselefendi/recipe-app-api/internal/service"
	"github.com/cselefendi/recipe-app-api/internal/validation"
)

// AttributeHandler serves one attribute collection: tags or ingredients.
type AttributeHandler struct {
	svc    *service.AttributeService
	logger *slog.Logger
}

// NewAttributeHandler creates a new AttributeHandler.
func NewAttributeHandler(svc *service.AttributeService, logger *slog.Logger) *AttributeHandler {
	return &AttributeHandler{
		svc:    svc,
		logger: logger,
	}
}

// Routes mounts the collection endpoints on r.
func (h *AttributeHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// List handles GET /api/v1/{tags,ingredients}.
// assigned_only=1 restricts the result to entries used by the user's recipes.
func (h *AttributeHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	assignedOnly, err := parseFlag(r.URL.Query().Get("assigned_only"))
	if err != nil {
		writeValidationError(w, validation.NewFieldError("assigned_only", "assigned_only must be 0 or 1"))
		return
	}

	attrs, err := h.svc.List(r.Context(), userID, assignedOnly)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToAttributeListResponse(attrs))
}

// Create handles POST /api/v1/{tags,ingredients}.
func (h *AttributeHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req dto.AttributeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	attr, err := h.svc.Create(r.Context(), userID, req.Name)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info(h.svc.Kind()+"_created", "id", attr.ID, "user_id", userID)

	writeJSON(w, http.StatusCreated, dto.ToAttributeResponse(attr))
}

// Update handles PATCH /api/v1/{tags,ingredients}/{id}.
func (h *AttributeHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req dto.AttributeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	attr, err := h.svc.Update(r.Context(), userID, chi.URLParam(r, "id"), req.Name)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToAttributeResponse(attr))
}

// Delete handles DELETE /api/v1/{tags,ingredients}/{id}.
func (h *AttributeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), userID, id); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info(h.svc.Kind()+"_deleted", "id", id, "user_id", userID)

	w.WriteHeader(http.StatusNoContent)
}

// parseFlag reads a boolean query flag. Empty means false.
func parseFlag(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "0", "false":
		return false, nil
	case "1", "true":
		return true, nil
	default:
		return false, errInvalidFlag
	}
}
