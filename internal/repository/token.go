package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cselefendi/recipe-app-api/internal/model"
)

// ErrTokenNotFound is returned when an auth token does not exist or is already revoked.
var ErrTokenNotFound = errors.New("auth token not found")

const tokenColumns = `id, user_id, token_hash, token_prefix, name, revoked_at, last_used_at, created_at`

// CreateAuthToken inserts a new auth token.
func (r *Repository) CreateAuthToken(ctx context.Context, token *model.AuthToken) error {
	query := `
		INSERT INTO auth_tokens (id, user_id, token_hash, token_prefix, name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.TokenPrefix,
		token.Name,
		token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create auth token: %w", err)
	}

	return nil
}

// GetAuthTokensByPrefix retrieves all active tokens matching a prefix.
// Used during authentication to find candidates for hash verification.
func (r *Repository) GetAuthTokensByPrefix(ctx context.Context, prefix string) ([]*model.AuthToken, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM auth_tokens
		WHERE token_prefix = $1 AND revoked_at IS NULL
	`

	rows, err := r.pool.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to get auth tokens by prefix: %w", err)
	}
	defer rows.Close()

	var tokens []*model.AuthToken
	for rows.Next() {
		token, err := scanAuthToken(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auth token: %w", err)
		}
		tokens = append(tokens, token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auth tokens: %w", err)
	}

	return tokens, nil
}

// RevokeAuthToken revokes a token by setting revoked_at.
func (r *Repository) RevokeAuthToken(ctx context.Context, id string) error {
	query := `
		UPDATE auth_tokens
		SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to revoke auth token: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrTokenNotFound
	}

	return nil
}

// UpdateAuthTokenLastUsed updates the last_used_at timestamp.
func (r *Repository) UpdateAuthTokenLastUsed(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE auth_tokens SET last_used_at = $2 WHERE id = $1`,
		id, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update auth token last used: %w", err)
	}

	return nil
}

func scanAuthToken(row rowScanner) (*model.AuthToken, error) {
	var token model.AuthToken
	err := row.Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.TokenPrefix,
		&token.Name,
		&token.RevokedAt,
		&token.LastUsedAt,
		&token.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &token, nil
}
