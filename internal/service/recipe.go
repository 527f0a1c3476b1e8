package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cselefendi/recipe-app-api/internal/metrics"
	"github.com/cselefendi/recipe-app-api/internal/model"
	"github.com/cselefendi/recipe-app-api/internal/repository"
	"github.com/cselefendi/recipe-app-api/internal/storage"
	"github.com/cselefendi/recipe-app-api/internal/validation"
)

// RecipeStore is the persistence the recipe service needs.
type RecipeStore interface {
	ListRecipes(ctx context.Context, filter repository.RecipeFilter) ([]*model.Recipe, error)
	GetRecipeDetail(ctx context.Context, userID, id string) (*model.RecipeDetail, error)
	CreateRecipe(ctx context.Context, recipe *model.Recipe) error
	UpdateRecipe(ctx context.Context, recipe *model.Recipe, opts repository.RecipeUpdate) error
	DeleteRecipe(ctx context.Context, userID, id string) (string, error)
	SetRecipeImage(ctx context.Context, userID, id, image string) (string, error)
}

// ImageStore persists uploaded image bytes.
type ImageStore interface {
	Save(filename string, r io.Reader) (string, error)
	Delete(rel string) error
}

// RecipeService handles recipe business logic.
type RecipeService struct {
	store   RecipeStore
	images  ImageStore
	metrics metrics.Recorder
}

// NewRecipeService creates a new RecipeService.
func NewRecipeService(store RecipeStore, images ImageStore, recorder metrics.Recorder) *RecipeService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &RecipeService{store: store, images: images, metrics: recorder}
}

// RecipeInput carries recipe fields. Nil fields are left untouched on
// update; Create requires Title, TimeMinutes and Price.
type RecipeInput struct {
	Title         *string
	TimeMinutes   *int
	Price         *string
	Link          *string
	TagIDs        *[]string
	IngredientIDs *[]string
}

// ListRecipesInput defines filters for listing recipes.
type ListRecipesInput struct {
	UserID        string
	TagIDs        []string
	IngredientIDs []string
}

// List returns the user's recipes, newest first.
func (s *RecipeService) List(ctx context.Context, input ListRecipesInput) ([]*model.Recipe, error) {
	recipes, err := s.store.ListRecipes(ctx, repository.RecipeFilter{
		UserID:        input.UserID,
		TagIDs:        input.TagIDs,
		IngredientIDs: input.IngredientIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	return recipes, nil
}

// Get returns a recipe with its tags and ingredients.
func (s *RecipeService) Get(ctx context.Context, userID, id string) (*model.RecipeDetail, error) {
	detail, err := s.store.GetRecipeDetail(ctx, userID, id)
	if err != nil {
		return nil, mapRecipeError(err)
	}
	return detail, nil
}

// Create stores a new recipe owned by userID.
func (s *RecipeService) Create(ctx context.Context, userID string, input RecipeInput) (*model.RecipeDetail, error) {
	if input.Title == nil || input.TimeMinutes == nil || input.Price == nil {
		return nil, fmt.Errorf("%w: title, time_minutes and price are required", ErrInvalidRecipe)
	}

	now := time.Now().UTC()
	recipe := &model.Recipe{
		ID:            generateID(),
		UserID:        userID,
		TagIDs:        []string{},
		IngredientIDs: []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	applyRecipeInput(recipe, input)

	if err := checkRecipe(recipe); err != nil {
		return nil, err
	}

	if err := s.store.CreateRecipe(ctx, recipe); err != nil {
		return nil, mapRecipeError(err)
	}

	s.metrics.IncEntityCreated(metrics.KindRecipe)
	return s.Get(ctx, userID, recipe.ID)
}

// Update applies input to a recipe owned by userID.
func (s *RecipeService) Update(ctx context.Context, userID, id string, input RecipeInput) (*model.RecipeDetail, error) {
	current, err := s.store.GetRecipeDetail(ctx, userID, id)
	if err != nil {
		return nil, mapRecipeError(err)
	}

	recipe := current.Recipe
	applyRecipeInput(&recipe, input)
	recipe.UpdatedAt = time.Now().UTC()

	if err := checkRecipe(&recipe); err != nil {
		return nil, err
	}

	opts := repository.RecipeUpdate{
		ReplaceTags:        input.TagIDs != nil,
		ReplaceIngredients: input.IngredientIDs != nil,
	}
	if err := s.store.UpdateRecipe(ctx, &recipe, opts); err != nil {
		return nil, mapRecipeError(err)
	}

	s.metrics.IncEntityUpdated(metrics.KindRecipe)
	return s.Get(ctx, userID, id)
}

// Delete removes a recipe and its stored image.
func (s *RecipeService) Delete(ctx context.Context, userID, id string) error {
	image, err := s.store.DeleteRecipe(ctx, userID, id)
	if err != nil {
		return mapRecipeError(err)
	}

	if image != "" && s.images != nil {
		_ = s.images.Delete(image)
	}

	s.metrics.IncEntityDeleted(metrics.KindRecipe)
	return nil
}

// UploadImage stores a new image for a recipe, replacing any previous one.
// Returns the stored relative path.
func (s *RecipeService) UploadImage(ctx context.Context, userID, id, filename string, r io.Reader) (string, error) {
	if s.images == nil {
		return "", errors.New("image storage not configured")
	}

	// Fail before writing anything for unknown recipes.
	if _, err := s.store.GetRecipeDetail(ctx, userID, id); err != nil {
		return "", mapRecipeError(err)
	}

	rel, err := s.images.Save(filename, r)
	if err != nil {
		if errors.Is(err, storage.ErrNotImage) || errors.Is(err, storage.ErrImageTooLarge) || errors.Is(err, storage.ErrEmptyImage) {
			s.metrics.IncImageUpload("rejected")
			return "", fmt.Errorf("%w: %s", ErrInvalidImage, err.Error())
		}
		return "", fmt.Errorf("failed to store image: %w", err)
	}

	previous, err := s.store.SetRecipeImage(ctx, userID, id, rel)
	if err != nil {
		_ = s.images.Delete(rel)
		return "", mapRecipeError(err)
	}
	if previous != "" && previous != rel {
		_ = s.images.Delete(previous)
	}

	s.metrics.IncImageUpload("stored")
	return rel, nil
}

func applyRecipeInput(recipe *model.Recipe, input RecipeInput) {
	if input.Title != nil {
		recipe.Title = strings.TrimSpace(*input.Title)
	}
	if input.TimeMinutes != nil {
		recipe.TimeMinutes = *input.TimeMinutes
	}
	if input.Price != nil {
		recipe.Price = strings.TrimSpace(*input.Price)
	}
	if input.Link != nil {
		recipe.Link = strings.TrimSpace(*input.Link)
	}
	if input.TagIDs != nil {
		recipe.TagIDs = append([]string{}, *input.TagIDs...)
	}
	if input.IngredientIDs != nil {
		recipe.IngredientIDs = append([]string{}, *input.IngredientIDs...)
	}
}

func checkRecipe(recipe *model.Recipe) error {
	switch {
	case recipe.Title == "":
		return fmt.Errorf("%w: title may not be blank", ErrInvalidRecipe)
	case utf8.RuneCountInString(recipe.Title) > maxNameLength:
		return fmt.Errorf("%w: title is too long", ErrInvalidRecipe)
	case hasNUL(recipe.Title):
		return fmt.Errorf("%w: title contains invalid characters", ErrInvalidRecipe)
	case recipe.TimeMinutes < 0:
		return fmt.Errorf("%w: time_minutes must be positive", ErrInvalidRecipe)
	case recipe.TimeMinutes > maxTimeMinutes:
		return fmt.Errorf("%w: time_minutes is too large", ErrInvalidRecipe)
	case !validation.IsPrice(recipe.Price):
		return fmt.Errorf("%w: price must have at most 5 digits and 2 decimal places", ErrInvalidRecipe)
	case utf8.RuneCountInString(recipe.Link) > maxNameLength:
		return fmt.Errorf("%w: link is too long", ErrInvalidRecipe)
	case hasNUL(recipe.Link):
		return fmt.Errorf("%w: link contains invalid characters", ErrInvalidRecipe)
	}
	return nil
}

func mapRecipeError(err error) error {
	switch {
	case errors.Is(err, repository.ErrRecipeNotFound):
		return ErrRecipeNotFound
	case errors.Is(err, repository.ErrForeignAttribute):
		return ErrUnknownAttribute
	default:
		return fmt.Errorf("recipe store: %w", err)
	}
}
