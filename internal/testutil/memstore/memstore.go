// Package memstore is an in-memory stand-in for the PostgreSQL repository,
// used by service and handler tests.
package memstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/cselefendi/recipe-app-api/internal/model"
	"github.com/cselefendi/recipe-app-api/internal/repository"
)

// Store mirrors the repository's user, token, attribute and recipe methods.
type Store struct {
	mu      sync.Mutex
	users   map[string]*model.User
	tokens  map[string]*model.AuthToken
	attrs   map[string]map[string]*model.Attribute // kind name -> id -> attribute
	recipes map[string]*model.Recipe
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:   make(map[string]*model.User),
		tokens:  make(map[string]*model.AuthToken),
		attrs:   map[string]map[string]*model.Attribute{"tag": {}, "ingredient": {}},
		recipes: make(map[string]*model.Recipe),
	}
}

// ============================================================================
// Users and tokens
// ============================================================================

func (s *Store) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return repository.ErrEmailExists
		}
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (s *Store) UpdateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return repository.ErrUserNotFound
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

// UserCount returns the number of stored users.
func (s *Store) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func (s *Store) CreateAuthToken(_ context.Context, token *model.AuthToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *token
	s.tokens[token.ID] = &cp
	return nil
}

func (s *Store) GetAuthTokensByPrefix(_ context.Context, prefix string) ([]*model.AuthToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.AuthToken
	for _, t := range s.tokens {
		if t.TokenPrefix == prefix && !t.IsRevoked() {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) RevokeAuthToken(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok || t.IsRevoked() {
		return repository.ErrTokenNotFound
	}
	now := time.Now().UTC()
	t.RevokedAt = &now
	return nil
}

func (s *Store) UpdateAuthTokenLastUsed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tokens[id]; ok {
		now := time.Now().UTC()
		t.LastUsedAt = &now
	}
	return nil
}

// ============================================================================
// Tags and ingredients
// ============================================================================

func (s *Store) ListAttributes(_ context.Context, kind repository.AttributeKind, filter repository.AttributeFilter) ([]*model.Attribute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.Attribute, 0)
	for _, a := range s.attrs[kind.Name] {
		if a.UserID != filter.UserID {
			continue
		}
		if filter.AssignedOnly && !s.assignedLocked(kind, a) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name > out[j].Name
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) assignedLocked(kind repository.AttributeKind, a *model.Attribute) bool {
	for _, r := range s.recipes {
		if r.UserID != a.UserID {
			continue
		}
		ids := r.TagIDs
		if kind.Name == repository.IngredientKind.Name {
			ids = r.IngredientIDs
		}
		for _, id := range ids {
			if id == a.ID {
				return true
			}
		}
	}
	return false
}

func (s *Store) CreateAttribute(_ context.Context, kind repository.AttributeKind, attr *model.Attribute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *attr
	s.attrs[kind.Name][attr.ID] = &cp
	return nil
}

func (s *Store) GetAttribute(_ context.Context, kind repository.AttributeKind, userID, id string) (*model.Attribute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attrs[kind.Name][id]
	if !ok || a.UserID != userID {
		return nil, repository.ErrAttributeNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *Store) UpdateAttribute(_ context.Context, kind repository.AttributeKind, attr *model.Attribute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attrs[kind.Name][attr.ID]
	if !ok || a.UserID != attr.UserID {
		return repository.ErrAttributeNotFound
	}
	a.Name = attr.Name
	return nil
}

func (s *Store) DeleteAttribute(_ context.Context, kind repository.AttributeKind, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attrs[kind.Name][id]
	if !ok || a.UserID != userID {
		return repository.ErrAttributeNotFound
	}
	delete(s.attrs[kind.Name], id)
	for _, r := range s.recipes {
		r.TagIDs = without(r.TagIDs, id)
		r.IngredientIDs = without(r.IngredientIDs, id)
	}
	return nil
}

// AttributeCount returns the number of stored attributes of kind.
func (s *Store) AttributeCount(kind repository.AttributeKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attrs[kind.Name])
}

// ============================================================================
// Recipes
// ============================================================================

func (s *Store) ListRecipes(_ context.Context, filter repository.RecipeFilter) ([]*model.Recipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.Recipe, 0)
	for _, r := range s.recipes {
		if r.UserID != filter.UserID {
			continue
		}
		if len(filter.TagIDs) > 0 && !intersects(r.TagIDs, filter.TagIDs) {
			continue
		}
		if len(filter.IngredientIDs) > 0 && !intersects(r.IngredientIDs, filter.IngredientIDs) {
			continue
		}
		out = append(out, cloneRecipe(r))
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) GetRecipeDetail(_ context.Context, userID, id string) (*model.RecipeDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.recipes[id]
	if !ok || r.UserID != userID {
		return nil, repository.ErrRecipeNotFound
	}

	detail := &model.RecipeDetail{
		Recipe:      *cloneRecipe(r),
		Tags:        []model.Tag{},
		Ingredients: []model.Ingredient{},
	}
	for _, tid := range r.TagIDs {
		detail.Tags = append(detail.Tags, model.Tag{Attribute: *s.attrs["tag"][tid]})
	}
	for _, iid := range r.IngredientIDs {
		detail.Ingredients = append(detail.Ingredients, model.Ingredient{Attribute: *s.attrs["ingredient"][iid]})
	}
	return detail, nil
}

func (s *Store) CreateRecipe(_ context.Context, recipe *model.Recipe) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOwnedLocked(recipe); err != nil {
		return err
	}
	s.recipes[recipe.ID] = cloneRecipe(recipe)
	return nil
}

func (s *Store) UpdateRecipe(_ context.Context, recipe *model.Recipe, opts repository.RecipeUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.recipes[recipe.ID]
	if !ok || current.UserID != recipe.UserID {
		return repository.ErrRecipeNotFound
	}
	if err := s.checkOwnedLocked(recipe); err != nil {
		return err
	}

	next := cloneRecipe(recipe)
	next.Image = current.Image
	if !opts.ReplaceTags {
		next.TagIDs = append([]string{}, current.TagIDs...)
	}
	if !opts.ReplaceIngredients {
		next.IngredientIDs = append([]string{}, current.IngredientIDs...)
	}
	s.recipes[recipe.ID] = next
	return nil
}

func (s *Store) DeleteRecipe(_ context.Context, userID, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.recipes[id]
	if !ok || r.UserID != userID {
		return "", repository.ErrRecipeNotFound
	}
	delete(s.recipes, id)
	return r.Image, nil
}

func (s *Store) SetRecipeImage(_ context.Context, userID, id, image string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.recipes[id]
	if !ok || r.UserID != userID {
		return "", repository.ErrRecipeNotFound
	}
	previous := r.Image
	r.Image = image
	return previous, nil
}

// RecipeCount returns the number of stored recipes.
func (s *Store) RecipeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recipes)
}

func (s *Store) checkOwnedLocked(recipe *model.Recipe) error {
	for _, id := range recipe.TagIDs {
		if a, ok := s.attrs["tag"][id]; !ok || a.UserID != recipe.UserID {
			return fmt.Errorf("%w: tag", repository.ErrForeignAttribute)
		}
	}
	for _, id := range recipe.IngredientIDs {
		if a, ok := s.attrs["ingredient"][id]; !ok || a.UserID != recipe.UserID {
			return fmt.Errorf("%w: ingredient", repository.ErrForeignAttribute)
		}
	}
	return nil
}

func cloneRecipe(r *model.Recipe) *model.Recipe {
	cp := *r
	cp.TagIDs = append([]string{}, r.TagIDs...)
	cp.IngredientIDs = append([]string{}, r.IngredientIDs...)
	return &cp
}

func intersects(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// ============================================================================
// Images and auth cache
// ============================================================================

// Images keeps saved image bytes in memory.
type Images struct {
	mu    sync.Mutex
	files map[string][]byte
	next  int
	// Err, when set, is returned by Save.
	Err error
}

// NewImages returns an empty Images store.
func NewImages() *Images {
	return &Images{files: make(map[string][]byte)}
}

func (m *Images) Save(filename string, r io.Reader) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	rel := fmt.Sprintf("uploads/recipe/img-%d-%s", m.next, filename)
	m.files[rel] = buf.Bytes()
	return rel, nil
}

func (m *Images) Delete(rel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, rel)
	return nil
}

// Has reports whether rel is stored.
func (m *Images) Has(rel string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[rel]
	return ok
}

// AuthCache is an in-memory auth context cache.
type AuthCache struct {
	mu      sync.Mutex
	entries map[string]*model.AuthContext
	revoked map[string]bool
}

// NewAuthCache returns an empty AuthCache.
func NewAuthCache() *AuthCache {
	return &AuthCache{
		entries: make(map[string]*model.AuthContext),
		revoked: make(map[string]bool),
	}
}

func (c *AuthCache) GetAuthContext(_ context.Context, cacheKey string) (*model.AuthContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.entries[cacheKey]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (c *AuthCache) SetAuthContext(_ context.Context, cacheKey string, auth *model.AuthContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.revoked[cacheKey] {
		return nil
	}
	cp := *auth
	c.entries[cacheKey] = &cp
	return nil
}

// RevokeAuthContext drops the entry and refuses to cache the key again.
// Unlike Redis the marker never expires.
func (c *AuthCache) RevokeAuthContext(_ context.Context, cacheKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cacheKey)
	c.revoked[cacheKey] = true
	return nil
}

func (c *AuthCache) InvalidateUserAuthContexts(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, a := range c.entries {
		if a.UserID == userID {
			delete(c.entries, k)
		}
	}
	return nil
}

// Len returns the number of cached entries.
func (c *AuthCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
