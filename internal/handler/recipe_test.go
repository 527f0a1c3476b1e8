package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cselefendi/recipe-app-api/internal/auth"
	"github.com/cselefendi/recipe-app-api/internal/handler/dto"
	"github.com/cselefendi/recipe-app-api/internal/model"
	"github.com/cselefendi/recipe-app-api/internal/repository"
	"github.com/cselefendi/recipe-app-api/internal/service"
	"github.com/cselefendi/recipe-app-api/internal/storage"
	"github.com/cselefendi/recipe-app-api/internal/testutil/memstore"
)

const recipesPath = "/api/v1/recipes"

// pngBytes is enough for content sniffing to report image/png.
var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

type recipeEnv struct {
	store       *memstore.Store
	tags        *service.AttributeService
	ingredients *service.AttributeService
	router      http.Handler
}

func newRecipeEnv(t *testing.T) *recipeEnv {
	store := memstore.New()
	images := storage.NewLocalImageStore(t.TempDir(), 1<<20)
	svc := service.NewRecipeService(store, images, nil)

	r := chi.NewRouter()
	r.Route(recipesPath, NewRecipeHandler(svc, testLogger(), "/media/").Routes)

	return &recipeEnv{
		store:       store,
		tags:        service.NewAttributeService(store, repository.TagKind, nil),
		ingredients: service.NewAttributeService(store, repository.IngredientKind, nil),
		router:      r,
	}
}

func (e *recipeEnv) tag(t *testing.T, userID, name string) string {
	t.Helper()
	attr, err := e.tags.Create(context.Background(), userID, name)
	require.NoError(t, err)
	return attr.ID
}

func (e *recipeEnv) ingredient(t *testing.T, userID, name string) string {
	t.Helper()
	attr, err := e.ingredients.Create(context.Background(), userID, name)
	require.NoError(t, err)
	return attr.ID
}

func (e *recipeEnv) create(t *testing.T, userID string, body map[string]any) dto.RecipeDetailResponse {
	t.Helper()
	rec := doJSON(t, e.router, http.MethodPost, recipesPath, body, userID)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[dto.RecipeDetailResponse](t, rec)
}

func recipeBody(title string) map[string]any {
	return map[string]any{
		"title":        title,
		"time_minutes": 10,
		"price":        "5.50",
	}
}

func titles(items []dto.RecipeResponse) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Title)
	}
	return out
}

func TestRecipeHandler_RequiresAuth(t *testing.T) {
	env := newRecipeEnv(t)

	rec := doJSON(t, env.router, http.MethodGet, recipesPath, nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, env.router, http.MethodPost, recipesPath, recipeBody("Soup"), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, env.store.RecipeCount())
}

func TestRecipeHandler_CreateWithTagsAndIngredients(t *testing.T) {
	env := newRecipeEnv(t)
	vegan := env.tag(t, "u1", "Vegan")
	prawns := env.ingredient(t, "u1", "Prawns")

	body := recipeBody("Thai Prawn Curry")
	body["link"] = "https://example.com/curry"
	body["tags"] = []string{vegan}
	body["ingredients"] = []string{prawns}

	detail := env.create(t, "u1", body)

	assert.Equal(t, "Thai Prawn Curry", detail.Title)
	assert.Equal(t, 10, detail.TimeMinutes)
	assert.Equal(t, "5.50", detail.Price)
	assert.Equal(t, "https://example.com/curry", detail.Link)
	assert.Nil(t, detail.Image)
	require.Len(t, detail.Tags, 1)
	assert.Equal(t, dto.AttributeResponse{ID: vegan, Name: "Vegan"}, detail.Tags[0])
	require.Len(t, detail.Ingredients, 1)
	assert.Equal(t, "Prawns", detail.Ingredients[0].Name)
}

func TestRecipeHandler_CreateValidation(t *testing.T) {
	env := newRecipeEnv(t)

	tests := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{"missing title", map[string]any{"time_minutes": 5, "price": "1.00"}, "title"},
		{"missing time", map[string]any{"title": "Soup", "price": "1.00"}, "time_minutes"},
		{"negative time", map[string]any{"title": "Soup", "time_minutes": -1, "price": "1.00"}, "time_minutes"},
		{"time beyond int32", map[string]any{"title": "Soup", "time_minutes": 2147483648, "price": "1.00"}, "time_minutes"},
		{"missing price", map[string]any{"title": "Soup", "time_minutes": 5}, "price"},
		{"price too large", map[string]any{"title": "Soup", "time_minutes": 5, "price": "1000.00"}, "price"},
		{"price too precise", map[string]any{"title": "Soup", "time_minutes": 5, "price": "1.005"}, "price"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, env.router, http.MethodPost, recipesPath, tt.body, "u1")
			require.Equal(t, http.StatusBadRequest, rec.Code)

			body := decodeError(t, rec)
			assert.Equal(t, "VALIDATION_ERROR", body.Code)
			assert.Contains(t, body.Details, tt.field)
		})
	}
	assert.Equal(t, 0, env.store.RecipeCount())
}

func TestRecipeHandler_CreateRejectsForeignTags(t *testing.T) {
	env := newRecipeEnv(t)
	foreign := env.tag(t, "u2", "Not yours")

	body := recipeBody("Soup")
	body["tags"] = []string{foreign}

	rec := doJSON(t, env.router, http.MethodPost, recipesPath, body, "u1")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UNKNOWN_ATTRIBUTE", decodeError(t, rec).Code)
	assert.Equal(t, 0, env.store.RecipeCount())
}

func TestRecipeHandler_ListScopedAndFiltered(t *testing.T) {
	env := newRecipeEnv(t)
	vegan := env.tag(t, "u1", "Vegan")
	dessert := env.tag(t, "u1", "Dessert")
	feta := env.ingredient(t, "u1", "Feta")

	withVegan := recipeBody("Veggie Curry")
	withVegan["tags"] = []string{vegan}
	env.create(t, "u1", withVegan)

	withDessert := recipeBody("Cheesecake")
	withDessert["tags"] = []string{dessert}
	withDessert["ingredients"] = []string{feta}
	env.create(t, "u1", withDessert)

	env.create(t, "u1", recipeBody("Plain Rice"))
	env.create(t, "u2", recipeBody("Someone else's"))

	rec := doJSON(t, env.router, http.MethodGet, recipesPath, nil, "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	all := decodeBody[[]dto.RecipeResponse](t, rec)
	assert.ElementsMatch(t, []string{"Veggie Curry", "Cheesecake", "Plain Rice"}, titles(all))

	rec = doJSON(t, env.router, http.MethodGet, recipesPath+"?tags="+vegan+","+dessert, nil, "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.ElementsMatch(t, []string{"Veggie Curry", "Cheesecake"}, titles(decodeBody[[]dto.RecipeResponse](t, rec)))

	rec = doJSON(t, env.router, http.MethodGet, recipesPath+"?ingredients="+feta, nil, "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	filtered := decodeBody[[]dto.RecipeResponse](t, rec)
	require.Len(t, filtered, 1)
	assert.Equal(t, "Cheesecake", filtered[0].Title)
	assert.Equal(t, []string{dessert}, filtered[0].Tags)
	assert.Equal(t, []string{feta}, filtered[0].Ingredients)
}

func TestRecipeHandler_GetOtherUsersRecipe(t *testing.T) {
	env := newRecipeEnv(t)
	created := env.create(t, "u1", recipeBody("Private"))

	rec := doJSON(t, env.router, http.MethodGet, recipesPath+"/"+created.ID, nil, "u2")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, env.router, http.MethodGet, recipesPath+"/"+created.ID, nil, "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Private", decodeBody[dto.RecipeDetailResponse](t, rec).Title)
}

func TestRecipeHandler_PatchAndPut(t *testing.T) {
	env := newRecipeEnv(t)
	vegan := env.tag(t, "u1", "Vegan")

	body := recipeBody("Curry")
	body["tags"] = []string{vegan}
	created := env.create(t, "u1", body)
	item := recipesPath + "/" + created.ID

	rec := doJSON(t, env.router, http.MethodPatch, item, map[string]any{"title": "Green Curry"}, "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	patched := decodeBody[dto.RecipeDetailResponse](t, rec)
	assert.Equal(t, "Green Curry", patched.Title)
	assert.Equal(t, "5.50", patched.Price)
	assert.Len(t, patched.Tags, 1, "patch without tags keeps them")

	rec = doJSON(t, env.router, http.MethodPatch, item, map[string]any{"title": ""}, "u1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, env.router, http.MethodPut, item, recipeBody("Red Curry"), "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	replaced := decodeBody[dto.RecipeDetailResponse](t, rec)
	assert.Equal(t, "Red Curry", replaced.Title)
	assert.Empty(t, replaced.Tags, "put without tags clears them")

	rec = doJSON(t, env.router, http.MethodPatch, item, map[string]any{"title": "Hijack"}, "u2")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecipeHandler_Delete(t *testing.T) {
	env := newRecipeEnv(t)
	created := env.create(t, "u1", recipeBody("Doomed"))
	item := recipesPath + "/" + created.ID

	rec := doJSON(t, env.router, http.MethodDelete, item, nil, "u2")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, env.router, http.MethodDelete, item, nil, "u1")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, env.store.RecipeCount())

	rec = doJSON(t, env.router, http.MethodGet, item, nil, "u1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func uploadRequest(t *testing.T, path, userID, filename string, content []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req.WithContext(auth.ContextWithAuth(req.Context(), &model.AuthContext{UserID: userID}))
}

func TestRecipeHandler_UploadImage(t *testing.T) {
	env := newRecipeEnv(t)
	created := env.create(t, "u1", recipeBody("Photogenic"))
	imagePath := recipesPath + "/" + created.ID + "/image"

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, uploadRequest(t, imagePath, "u1", "notes.txt", []byte("just some text")))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_IMAGE", decodeError(t, rec).Code)

	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, uploadRequest(t, imagePath, "u1", "photo.png", pngBytes))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	uploaded := decodeBody[dto.RecipeImageResponse](t, rec)
	assert.Equal(t, created.ID, uploaded.ID)
	assert.True(t, strings.HasPrefix(uploaded.Image, "/media/uploads/recipe/"), uploaded.Image)
	assert.True(t, strings.HasSuffix(uploaded.Image, ".png"), uploaded.Image)

	rec = doJSON(t, env.router, http.MethodGet, recipesPath+"/"+created.ID, nil, "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decodeBody[dto.RecipeDetailResponse](t, rec)
	require.NotNil(t, detail.Image)
	assert.Equal(t, uploaded.Image, *detail.Image)
}

func TestRecipeHandler_UploadImageErrors(t *testing.T) {
	env := newRecipeEnv(t)
	created := env.create(t, "u1", recipeBody("Photogenic"))

	// Someone else's recipe
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, uploadRequest(t, recipesPath+"/"+created.ID+"/image", "u2", "photo.png", pngBytes))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Not multipart
	rec = doJSON(t, env.router, http.MethodPost, recipesPath+"/"+created.ID+"/image", map[string]string{"image": "x"}, "u1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
