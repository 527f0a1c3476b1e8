package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cselefendi/recipe-app-api/internal/auth"
	"github.com/cselefendi/recipe-app-api/internal/metrics"
	"github.com/cselefendi/recipe-app-api/internal/model"
	"github.com/cselefendi/recipe-app-api/internal/repository"
)

// UserStore is the persistence the user service needs.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error

	CreateAuthToken(ctx context.Context, token *model.AuthToken) error
	GetAuthTokensByPrefix(ctx context.Context, prefix string) ([]*model.AuthToken, error)
	RevokeAuthToken(ctx context.Context, id string) error
	UpdateAuthTokenLastUsed(ctx context.Context, id string) error
}

// AuthCache drops cached auth contexts.
type AuthCache interface {
	RevokeAuthContext(ctx context.Context, cacheKey string) error
	InvalidateUserAuthContexts(ctx context.Context, userID string) error
}

// UserService handles accounts, passwords and login tokens.
type UserService struct {
	store    UserStore
	cache    AuthCache
	tokenEnv string
	metrics  metrics.Recorder
}

// NewUserService creates a new UserService. cache may be nil.
func NewUserService(store UserStore, cache AuthCache, tokenEnv string, recorder metrics.Recorder) *UserService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &UserService{
		store:    store,
		cache:    cache,
		tokenEnv: tokenEnv,
		metrics:  recorder,
	}
}

// UserFields holds the optional attributes of a new user.
type UserFields struct {
	Name        string
	IsStaff     bool
	IsSuperuser bool
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser creates and saves a new user with a hashed password.
func (s *UserService) CreateUser(ctx context.Context, email, password string, fields UserFields) (*model.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}
	if hasNUL(email) || hasNUL(fields.Name) {
		return nil, ErrNameInvalid
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:           generateID(),
		Email:        email,
		Name:         strings.TrimSpace(fields.Name),
		PasswordHash: hash,
		IsActive:     true,
		IsStaff:      fields.IsStaff,
		IsSuperuser:  fields.IsSuperuser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.metrics.IncEntityCreated(metrics.KindUser)
	return user, nil
}

// CreateSuperuser creates a staff user with every permission.
func (s *UserService) CreateSuperuser(ctx context.Context, email, password string) (*model.User, error) {
	return s.CreateUser(ctx, email, password, UserFields{IsStaff: true, IsSuperuser: true})
}

// CheckPassword reports whether password matches the user's stored hash.
func (s *UserService) CheckPassword(user *model.User, password string) bool {
	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	return err == nil && ok
}

// Authenticate returns the active user with the given credentials.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.store.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !s.CheckPassword(user, password) || !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// IssueToken creates a login token for user. The plaintext is only
// available from the return value.
func (s *UserService) IssueToken(ctx context.Context, user *model.User) (string, *model.AuthToken, error) {
	generated, err := auth.GenerateToken(s.tokenEnv)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}

	token := &model.AuthToken{
		ID:          generateID(),
		UserID:      user.ID,
		TokenHash:   generated.Hash,
		TokenPrefix: generated.Prefix,
		Name:        "login",
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateAuthToken(ctx, token); err != nil {
		return "", nil, fmt.Errorf("failed to store token: %w", err)
	}

	s.metrics.IncTokenIssued()
	return generated.Plaintext, token, nil
}

// Login authenticates and issues a token in one step.
func (s *UserService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return "", err
	}
	plaintext, _, err := s.IssueToken(ctx, user)
	return plaintext, err
}

// ResolveToken verifies a plaintext token and builds the auth context
// for its active owner.
func (s *UserService) ResolveToken(ctx context.Context, plaintext string) (*model.AuthContext, error) {
	parsed, err := auth.ParseToken(plaintext)
	if err != nil {
		return nil, ErrInvalidToken
	}

	candidates, err := s.store.GetAuthTokensByPrefix(ctx, parsed.Prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	// Several tokens may share a prefix.
	var matched *model.AuthToken
	for _, candidate := range candidates {
		if ok, err := auth.VerifyPassword(plaintext, candidate.TokenHash); err == nil && ok {
			matched = candidate
			break
		}
	}
	if matched == nil {
		return nil, ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, matched.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to get token owner: %w", err)
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}

	// Best effort; a failed timestamp update must not fail the request.
	_ = s.store.UpdateAuthTokenLastUsed(ctx, matched.ID)

	return &model.AuthContext{
		TokenID:     matched.ID,
		TokenPrefix: matched.TokenPrefix,
		UserID:      user.ID,
		Email:       user.Email,
		IsStaff:     user.IsStaff,
		IsSuperuser: user.IsSuperuser,
	}, nil
}

// RevokeToken revokes a token and evicts its cached auth context.
func (s *UserService) RevokeToken(ctx context.Context, tokenID, plaintext string) error {
	if err := s.store.RevokeAuthToken(ctx, tokenID); err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return ErrTokenNotFound
		}
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	if s.cache != nil && plaintext != "" {
		_ = s.cache.RevokeAuthContext(ctx, auth.CacheKey(plaintext))
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *UserService) GetUser(ctx context.Context, id string) (*model.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UpdateUserInput defines the profile fields a user may change.
// Nil fields are left untouched.
type UpdateUserInput struct {
	Name     *string
	Password *string
}

// UpdateUser changes the name and/or password of a user.
func (s *UserService) UpdateUser(ctx context.Context, id string, input UpdateUserInput) (*model.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if hasNUL(*input.Name) {
			return nil, ErrNameInvalid
		}
		user.Name = strings.TrimSpace(*input.Name)
	}
	if input.Password != nil {
		if *input.Password == "" {
			return nil, ErrPasswordRequired
		}
		hash, err := auth.HashPassword(*input.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = hash
	}
	user.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	if input.Password != nil && s.cache != nil {
		_ = s.cache.InvalidateUserAuthContexts(ctx, user.ID)
	}

	s.metrics.IncEntityUpdated(metrics.KindUser)
	return user, nil
}
