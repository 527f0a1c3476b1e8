package dto

import (
	"time"

	"github.com/cselefendi/recipe-app-api/internal/model"
)

// CreateRecipeRequest represents the body for POST and PUT on recipes.
type CreateRecipeRequest struct {
	Title       string   `json:"title" validate:"notblank,max=255"`
	TimeMinutes *int     `json:"time_minutes" validate:"required,gte=0,lte=2147483647"`
	Price       string   `json:"price" validate:"required,price"`
	Link        string   `json:"link" validate:"max=255"`
	Tags        []string `json:"tags" validate:"omitempty,dive,required"`
	Ingredients []string `json:"ingredients" validate:"omitempty,dive,required"`
}

// UpdateRecipeRequest represents a partial recipe update. Absent fields
// are left unchanged; a present tags or ingredients list replaces the
// current one.
type UpdateRecipeRequest struct {
	Title       *string   `json:"title,omitempty" validate:"omitempty,notblank,max=255"`
	TimeMinutes *int      `json:"time_minutes,omitempty" validate:"omitempty,gte=0,lte=2147483647"`
	Price       *string   `json:"price,omitempty" validate:"omitempty,price"`
	Link        *string   `json:"link,omitempty" validate:"omitempty,max=255"`
	Tags        *[]string `json:"tags,omitempty" validate:"omitempty,dive,required"`
	Ingredients *[]string `json:"ingredients,omitempty" validate:"omitempty,dive,required"`
}

// RecipeResponse is a recipe in list responses, with tag and ingredient ids.
type RecipeResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	TimeMinutes int       `json:"time_minutes"`
	Price       string    `json:"price"`
	Link        string    `json:"link"`
	Image       *string   `json:"image"`
	Tags        []string  `json:"tags"`
	Ingredients []string  `json:"ingredients"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RecipeDetailResponse nests the full tags and ingredients.
type RecipeDetailResponse struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	TimeMinutes int                 `json:"time_minutes"`
	Price       string              `json:"price"`
	Link        string              `json:"link"`
	Image       *string             `json:"image"`
	Tags        []AttributeResponse `json:"tags"`
	Ingredients []AttributeResponse `json:"ingredients"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// RecipeImageResponse is returned after an image upload.
type RecipeImageResponse struct {
	ID    string `json:"id"`
	Image string `json:"image"`
}

// ImageURL joins the media URL prefix and a stored relative path.
// An empty path yields nil, rendered as JSON null.
func ImageURL(mediaURL, rel string) *string {
	if rel == "" {
		return nil
	}
	u := mediaURL + rel
	return &u
}

// ToRecipeResponse converts a Recipe model to RecipeResponse DTO.
func ToRecipeResponse(r *model.Recipe, mediaURL string) RecipeResponse {
	return RecipeResponse{
		ID:          r.ID,
		Title:       r.Title,
		TimeMinutes: r.TimeMinutes,
		Price:       r.Price,
		Link:        r.Link,
		Image:       ImageURL(mediaURL, r.Image),
		Tags:        nonNil(r.TagIDs),
		Ingredients: nonNil(r.IngredientIDs),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// ToRecipeListResponse converts recipes, keeping their order.
func ToRecipeListResponse(recipes []*model.Recipe, mediaURL string) []RecipeResponse {
	out := make([]RecipeResponse, 0, len(recipes))
	for _, r := range recipes {
		out = append(out, ToRecipeResponse(r, mediaURL))
	}
	return out
}

// ToRecipeDetailResponse converts a RecipeDetail model to RecipeDetailResponse DTO.
func ToRecipeDetailResponse(d *model.RecipeDetail, mediaURL string) *RecipeDetailResponse {
	tags := make([]AttributeResponse, 0, len(d.Tags))
	for i := range d.Tags {
		tags = append(tags, ToAttributeResponse(&d.Tags[i].Attribute))
	}
	ingredients := make([]AttributeResponse, 0, len(d.Ingredients))
	for i := range d.Ingredients {
		ingredients = append(ingredients, ToAttributeResponse(&d.Ingredients[i].Attribute))
	}

	return &RecipeDetailResponse{
		ID:          d.ID,
		Title:       d.Title,
		TimeMinutes: d.TimeMinutes,
		Price:       d.Price,
		Link:        d.Link,
		Image:       ImageURL(mediaURL, d.Image),
		Tags:        tags,
		Ingredients: ingredients,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
