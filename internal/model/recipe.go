package model

import "time"

// Recipe is a user-owned dish with its tags and ingredients.
type Recipe struct {
	ID            string    `json:"id"`
	UserID        string    `json:"-"`
	Title         string    `json:"title"`
	TimeMinutes   int       `json:"time_minutes"`
	Price         string    `json:"price"` // decimal, NUMERIC(5,2)
	Link          string    `json:"link"`
	Image         string    `json:"image,omitempty"`
	TagIDs        []string  `json:"tags"`
	IngredientIDs []string  `json:"ingredients"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// String returns the recipe title.
func (r *Recipe) String() string {
	return r.Title
}

// RecipeDetail is a recipe with its tags and ingredients resolved.
type RecipeDetail struct {
	Recipe
	Tags        []Tag
	Ingredients []Ingredient
}
