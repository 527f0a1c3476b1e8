package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cselefendi/recipe-app-api/internal/handler/dto"
	"github.com/cselefendi/recipe-app-api/internal/service"
)

// imageField is the multipart form field carrying an uploaded image.
const imageField = "image"

// multipartMemory is how much of a multipart body is kept in memory;
// the rest spills to temporary files.
const multipartMemory = 1 << 20

// RecipeHandler handles HTTP requests for recipe operations.
type RecipeHandler struct {
	svc      *service.RecipeService
	logger   *slog.Logger
	mediaURL string
}

// NewRecipeHandler creates a new RecipeHandler. mediaURL prefixes stored
// image paths in responses, e.g. "/media/".
func NewRecipeHandler(svc *service.RecipeService, logger *slog.Logger, mediaURL string) *RecipeHandler {
	return &RecipeHandler{
		svc:      svc,
		logger:   logger,
		mediaURL: mediaURL,
	}
}

// Routes mounts the recipe endpoints on r.
func (h *RecipeHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Replace)
		r.Patch("/", h.Update)
		r.Delete("/", h.Delete)
		r.Post("/image", h.UploadImage)
	})
}

// List handles GET /api/v1/recipes.
// tags and ingredients take comma separated ids.
func (h *RecipeHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	recipes, err := h.svc.List(r.Context(), service.ListRecipesInput{
		UserID:        userID,
		TagIDs:        splitIDs(query.Get("tags")),
		IngredientIDs: splitIDs(query.Get("ingredients")),
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToRecipeListResponse(recipes, h.mediaURL))
}

// Get handles GET /api/v1/recipes/{id}.
func (h *RecipeHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	detail, err := h.svc.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToRecipeDetailResponse(detail, h.mediaURL))
}

// Create handles POST /api/v1/recipes.
func (h *RecipeHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req dto.CreateRecipeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	detail, err := h.svc.Create(r.Context(), userID, fullInput(req))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("recipe_created",
		"recipe_id", detail.ID,
		"user_id", userID,
		"tags", len(detail.Tags),
		"ingredients", len(detail.Ingredients),
	)

	writeJSON(w, http.StatusCreated, dto.ToRecipeDetailResponse(detail, h.mediaURL))
}

// Replace handles PUT /api/v1/recipes/{id}. Omitted tags or ingredients
// are cleared.
func (h *RecipeHandler) Replace(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req dto.CreateRecipeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	h.update(w, r, userID, fullInput(req))
}

// Update handles PATCH /api/v1/recipes/{id}.
func (h *RecipeHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req dto.UpdateRecipeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	h.update(w, r, userID, service.RecipeInput{
		Title:         req.Title,
		TimeMinutes:   req.TimeMinutes,
		Price:         req.Price,
		Link:          req.Link,
		TagIDs:        req.Tags,
		IngredientIDs: req.Ingredients,
	})
}

func (h *RecipeHandler) update(w http.ResponseWriter, r *http.Request, userID string, input service.RecipeInput) {
	detail, err := h.svc.Update(r.Context(), userID, chi.URLParam(r, "id"), input)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("recipe_updated", "recipe_id", detail.ID, "user_id", userID)

	writeJSON(w, http.StatusOK, dto.ToRecipeDetailResponse(detail, h.mediaURL))
}

// Delete handles DELETE /api/v1/recipes/{id}.
func (h *RecipeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), userID, id); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("recipe_deleted", "recipe_id", id, "user_id", userID)

	w.WriteHeader(http.StatusNoContent)
}

// UploadImage handles POST /api/v1/recipes/{id}/image with a multipart
// "image" field.
func (h *RecipeHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_IMAGE", "Expected a multipart form with an image field")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	file, header, err := r.FormFile(imageField)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_IMAGE", "Upload a valid image")
		return
	}
	defer file.Close()

	id := chi.URLParam(r, "id")
	rel, err := h.svc.UploadImage(r.Context(), userID, id, header.Filename, file)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("recipe_image_uploaded", "recipe_id", id, "user_id", userID, "size", header.Size)

	writeJSON(w, http.StatusOK, dto.RecipeImageResponse{
		ID:    id,
		Image: h.mediaURL + rel,
	})
}

// fullInput maps a complete recipe body. Missing tag or ingredient lists
// become empty lists so they replace the current ones.
func fullInput(req dto.CreateRecipeRequest) service.RecipeInput {
	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}
	ingredients := req.Ingredients
	if ingredients == nil {
		ingredients = []string{}
	}
	return service.RecipeInput{
		Title:         &req.Title,
		TimeMinutes:   req.TimeMinutes,
		Price:         &req.Price,
		Link:          &req.Link,
		TagIDs:        &tags,
		IngredientIDs: &ingredients,
	}
}

// splitIDs parses "a,b, c" into ids, dropping blanks.
func splitIDs(v string) []string {
	if v == "" {
		return nil
	}
	var ids []string
	for _, part := range strings.Split(v, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
