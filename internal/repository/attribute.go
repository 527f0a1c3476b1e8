package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/cselefendi/recipe-app-api/internal/model"
)

// ErrAttributeNotFound is returned when a tag or ingredient does not exist for the owner.
var ErrAttributeNotFound = errors.New("attribute not found")

// AttributeKind names the tables backing one attribute type.
// Values are fixed at compile time and interpolated into SQL.
type AttributeKind struct {
	Name       string // "tag" or "ingredient"
	Table      string
	LinkTable  string
	LinkColumn string
}

// Attribute kinds.
var (
	TagKind = AttributeKind{
		Name:       "tag",
		Table:      "tags",
		LinkTable:  "recipe_tags",
		LinkColumn: "tag_id",
	}
	IngredientKind = AttributeKind{
		Name:       "ingredient",
		Table:      "ingredients",
		LinkTable:  "recipe_ingredients",
		LinkColumn: "ingredient_id",
	}
)

// AttributeFilter defines filters for listing attributes.
type AttributeFilter struct {
	UserID string
	// AssignedOnly keeps only attributes referenced by at least one of the user's recipes.
	AssignedOnly bool
}

// ListAttributes returns the user's attributes of the given kind, ordered by name descending.
// The assigned-only filter is a semi-join, so an attribute linked to several
// recipes is still returned once.
func (r *Repository) ListAttributes(ctx context.Context, kind AttributeKind, filter AttributeFilter) ([]*model.Attribute, error) {
	query := fmt.Sprintf(`
		SELECT a.id, a.user_id, a.name, a.created_at
		FROM %s a
		WHERE a.user_id = $1
	`, kind.Table)

	if filter.AssignedOnly {
		query += fmt.Sprintf(`
		  AND EXISTS (
			SELECT 1
			FROM %s l
			JOIN recipes r ON r.id = l.recipe_id
			WHERE l.%s = a.id AND r.user_id = $1
		  )
		`, kind.LinkTable, kind.LinkColumn)
	}

	query += ` ORDER BY a.name DESC, a.id DESC`

	rows, err := r.pool.Query(ctx, query, filter.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %ss: %w", kind.Name, err)
	}
	defer rows.Close()

	attrs := make([]*model.Attribute, 0)
	for rows.Next() {
		attr, err := scanAttribute(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", kind.Name, err)
		}
		attrs = append(attrs, attr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %ss: %w", kind.Name, err)
	}

	return attrs, nil
}

// CreateAttribute inserts a new attribute.
func (r *Repository) CreateAttribute(ctx context.Context, kind AttributeKind, attr *model.Attribute) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, name, created_at)
		VALUES ($1, $2, $3, $4)
	`, kind.Table)

	if _, err := r.pool.Exec(ctx, query, attr.ID, attr.UserID, attr.Name, attr.CreatedAt); err != nil {
		return fmt.Errorf("failed to create %s: %w", kind.Name, err)
	}

	return nil
}

// GetAttribute retrieves an attribute owned by userID.
func (r *Repository) GetAttribute(ctx context.Context, kind AttributeKind, userID, id string) (*model.Attribute, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, name, created_at
		FROM %s
		WHERE id = $1 AND user_id = $2
	`, kind.Table)

	attr, err := scanAttribute(r.pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttributeNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", kind.Name, err)
	}

	return attr, nil
}

// UpdateAttribute renames an attribute owned by attr.UserID.
func (r *Repository) UpdateAttribute(ctx context.Context, kind AttributeKind, attr *model.Attribute) error {
	query := fmt.Sprintf(`UPDATE %s SET name = $3 WHERE id = $1 AND user_id = $2`, kind.Table)

	result, err := r.pool.Exec(ctx, query, attr.ID, attr.UserID, attr.Name)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", kind.Name, err)
	}
	if result.RowsAffected() == 0 {
		return ErrAttributeNotFound
	}

	return nil
}

// DeleteAttribute removes an attribute owned by userID. Recipe links cascade.
func (r *Repository) DeleteAttribute(ctx context.Context, kind AttributeKind, userID, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND user_id = $2`, kind.Table)

	result, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind.Name, err)
	}
	if result.RowsAffected() == 0 {
		return ErrAttributeNotFound
	}

	return nil
}

// countOwnedAttributes counts how many of ids exist and belong to userID.
func countOwnedAttributes(ctx context.Context, q querier, kind AttributeKind, userID string, ids []string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE user_id = $1 AND id = ANY($2)`, kind.Table)

	var n int
	if err := q.QueryRow(ctx, query, userID, pq.Array(ids)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %ss: %w", kind.Name, err)
	}
	return n, nil
}

func scanAttribute(row rowScanner) (*model.Attribute, error) {
	var attr model.Attribute
	if err := row.Scan(&attr.ID, &attr.UserID, &attr.Name, &attr.CreatedAt); err != nil {
		return nil, err
	}
	return &attr, nil
}
