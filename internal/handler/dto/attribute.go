package dto

import "github.com/cselefendi/recipe-app-api/internal/model"

// AttributeRequest is the body for creating or renaming a tag or ingredient.
type AttributeRequest struct {
	Name string `json:"name" validate:"notblank,max=255"`
}

// AttributeResponse is a tag or ingredient in API responses.
type AttributeResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ToAttributeResponse converts an Attribute model to AttributeResponse DTO.
func ToAttributeResponse(attr *model.Attribute) AttributeResponse {
	return AttributeResponse{ID: attr.ID, Name: attr.Name}
}

// ToAttributeListResponse converts attributes, keeping their order.
func ToAttributeListResponse(attrs []*model.Attribute) []AttributeResponse {
	out := make([]AttributeResponse, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, ToAttributeResponse(a))
	}
	return out
}
