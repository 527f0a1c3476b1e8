package model

import "time"

// Attribute is a named label owned by a user and attachable to recipes.
// Tags and ingredients share this shape.
type Attribute struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"-"`
}

// String returns the attribute name.
func (a Attribute) String() string {
	return a.Name
}

// Tag categorizes recipes, e.g. "Vegan" or "Dessert".
type Tag struct {
	Attribute
}

// Ingredient is something a recipe is made of.
type Ingredient struct {
	Attribute
}

// NewTag builds a Tag owned by userID.
func NewTag(id, userID, name string) *Tag {
	return &Tag{Attribute{ID: id, UserID: userID, Name: name}}
}

// NewIngredient builds an Ingredient owned by userID.
func NewIngredient(id, userID, name string) *Ingredient {
	return &Ingredient{Attribute{ID: id, UserID: userID, Name: name}}
}
