package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cselefendi/recipe-app-api/internal/metrics"
	"github.com/cselefendi/recipe-app-api/internal/model"
	"github.com/cselefendi/recipe-app-api/internal/repository"
)

// AttributeStore is the persistence for tags and ingredients.
type AttributeStore interface {
	ListAttributes(ctx context.Context, kind repository.AttributeKind, filter repository.AttributeFilter) ([]*model.Attribute, error)
	CreateAttribute(ctx context.Context, kind repository.AttributeKind, attr *model.Attribute) error
	GetAttribute(ctx context.Context, kind repository.AttributeKind, userID, id string) (*model.Attribute, error)
	UpdateAttribute(ctx context.Context, kind repository.AttributeKind, attr *model.Attribute) error
	DeleteAttribute(ctx context.Context, kind repository.AttributeKind, userID, id string) error
}

// AttributeService manages one kind of user-owned recipe attribute.
// The same service type backs both tags and ingredients.
type AttributeService struct {
	store   AttributeStore
	kind    repository.AttributeKind
	metrics metrics.Recorder
}

// NewAttributeService creates a service for kind.
func NewAttributeService(store AttributeStore, kind repository.AttributeKind, recorder metrics.Recorder) *AttributeService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &AttributeService{store: store, kind: kind, metrics: recorder}
}

// Kind returns the attribute kind name, "tag" or "ingredient".
func (s *AttributeService) Kind() string {
	return s.kind.Name
}

// List returns the user's attributes ordered by name descending. With
// assignedOnly, only those used by at least one of the user's recipes.
func (s *AttributeService) List(ctx context.Context, userID string, assignedOnly bool) ([]*model.Attribute, error) {
	attrs, err := s.store.ListAttributes(ctx, s.kind, repository.AttributeFilter{
		UserID:       userID,
		AssignedOnly: assignedOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %ss: %w", s.kind.Name, err)
	}
	return attrs, nil
}

// Create stores a new attribute owned by userID.
func (s *AttributeService) Create(ctx context.Context, userID, name string) (*model.Attribute, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}

	attr := &model.Attribute{
		ID:        generateID(),
		UserID:    userID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateAttribute(ctx, s.kind, attr); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", s.kind.Name, err)
	}

	s.metrics.IncEntityCreated(s.kind.Name)
	return attr, nil
}

// Update renames an attribute owned by userID.
func (s *AttributeService) Update(ctx context.Context, userID, id, name string) (*model.Attribute, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}

	attr, err := s.store.GetAttribute(ctx, s.kind, userID, id)
	if err != nil {
		return nil, s.mapError(err)
	}

	attr.Name = name
	if err := s.store.UpdateAttribute(ctx, s.kind, attr); err != nil {
		return nil, s.mapError(err)
	}

	s.metrics.IncEntityUpdated(s.kind.Name)
	return attr, nil
}

// Delete removes an attribute owned by userID.
func (s *AttributeService) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteAttribute(ctx, s.kind, userID, id); err != nil {
		return s.mapError(err)
	}
	s.metrics.IncEntityDeleted(s.kind.Name)
	return nil
}

func (s *AttributeService) mapError(err error) error {
	if errors.Is(err, repository.ErrAttributeNotFound) {
		return ErrAttributeNotFound
	}
	return fmt.Errorf("%s store: %w", s.kind.Name, err)
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrNameRequired
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", ErrNameTooLong
	}
	if hasNUL(name) {
		return "", ErrNameInvalid
	}
	return name, nil
}
