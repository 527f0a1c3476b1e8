package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/cselefendi/recipe-app-api/internal/model"
)

// Common errors for recipe repository operations.
var (
	ErrRecipeNotFound = errors.New("recipe not found")
	// ErrForeignAttribute is returned when a recipe references a tag or
	// ingredient that does not exist or belongs to another user.
	ErrForeignAttribute = errors.New("attribute not owned by user")
)

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const recipeColumns = `id, user_id, title, time_minutes, price::text, link, COALESCE(image, ''), created_at, updated_at`

// RecipeFilter defines filters for listing recipes.
type RecipeFilter struct {
	UserID string
	// TagIDs keeps recipes linked to any of the given tags.
	TagIDs []string
	// IngredientIDs keeps recipes linked to any of the given ingredients.
	IngredientIDs []string
}

// RecipeUpdate describes which link sets UpdateRecipe replaces.
type RecipeUpdate struct {
	ReplaceTags        bool
	ReplaceIngredients bool
}

// ListRecipes returns the user's recipes, newest first, with tag and ingredient ids loaded.
func (r *Repository) ListRecipes(ctx context.Context, filter RecipeFilter) ([]*model.Recipe, error) {
	var (
		conditions = []string{"r.user_id = $1"}
		args       = []any{filter.UserID}
	)

	if len(filter.TagIDs) > 0 {
		args = append(args, pq.Array(filter.TagIDs))
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM recipe_tags rt WHERE rt.recipe_id = r.id AND rt.tag_id = ANY($%d))", len(args)))
	}
	if len(filter.IngredientIDs) > 0 {
		args = append(args, pq.Array(filter.IngredientIDs))
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM recipe_ingredients ri WHERE ri.recipe_id = r.id AND ri.ingredient_id = ANY($%d))", len(args)))
	}

	query := `
		SELECT r.id, r.user_id, r.title, r.time_minutes, r.price::text, r.link, COALESCE(r.image, ''), r.created_at, r.updated_at
		FROM recipes r
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY r.created_at DESC, r.id DESC
	`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	defer rows.Close()

	recipes := make([]*model.Recipe, 0)
	byID := make(map[string]*model.Recipe)
	for rows.Next() {
		recipe, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recipe: %w", err)
		}
		recipes = append(recipes, recipe)
		byID[recipe.ID] = recipe
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recipes: %w", err)
	}

	if len(recipes) == 0 {
		return recipes, nil
	}

	ids := make([]string, 0, len(recipes))
	for _, recipe := range recipes {
		ids = append(ids, recipe.ID)
	}

	if err := r.loadLinkIDs(ctx, TagKind, ids, func(recipeID, id string) {
		byID[recipeID].TagIDs = append(byID[recipeID].TagIDs, id)
	}); err != nil {
		return nil, err
	}
	if err := r.loadLinkIDs(ctx, IngredientKind, ids, func(recipeID, id string) {
		byID[recipeID].IngredientIDs = append(byID[recipeID].IngredientIDs, id)
	}); err != nil {
		return nil, err
	}

	return recipes, nil
}

// GetRecipeDetail retrieves a recipe owned by userID with its tags and ingredients.
func (r *Repository) GetRecipeDetail(ctx context.Context, userID, id string) (*model.RecipeDetail, error) {
	recipe, err := scanRecipe(r.pool.QueryRow(ctx,
		`SELECT `+recipeColumns+` FROM recipes WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecipeNotFound
		}
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}

	tags, err := r.linkedAttributes(ctx, TagKind, id)
	if err != nil {
		return nil, err
	}
	ingredients, err := r.linkedAttributes(ctx, IngredientKind, id)
	if err != nil {
		return nil, err
	}

	detail := &model.RecipeDetail{
		Recipe:      *recipe,
		Tags:        make([]model.Tag, 0, len(tags)),
		Ingredients: make([]model.Ingredient, 0, len(ingredients)),
	}
	for _, a := range tags {
		detail.Tags = append(detail.Tags, model.Tag{Attribute: *a})
		detail.TagIDs = append(detail.TagIDs, a.ID)
	}
	for _, a := range ingredients {
		detail.Ingredients = append(detail.Ingredients, model.Ingredient{Attribute: *a})
		detail.IngredientIDs = append(detail.IngredientIDs, a.ID)
	}

	return detail, nil
}

// CreateRecipe inserts a recipe and its tag and ingredient links in one transaction.
// Returns ErrForeignAttribute if any linked id is not owned by recipe.UserID.
func (r *Repository) CreateRecipe(ctx context.Context, recipe *model.Recipe) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO recipes (id, user_id, title, time_minutes, price, link, image, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5::text::numeric, $6, NULLIF($7, ''), $8, $9)
		`,
			recipe.ID,
			recipe.UserID,
			recipe.Title,
			recipe.TimeMinutes,
			recipe.Price,
			recipe.Link,
			recipe.Image,
			recipe.CreatedAt,
			recipe.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create recipe: %w", err)
		}

		if err := replaceLinks(ctx, tx, TagKind, recipe.UserID, recipe.ID, recipe.TagIDs); err != nil {
			return err
		}
		return replaceLinks(ctx, tx, IngredientKind, recipe.UserID, recipe.ID, recipe.IngredientIDs)
	})
}

// UpdateRecipe writes the scalar fields of a recipe owned by recipe.UserID and,
// as requested by opts, replaces its tag and ingredient links.
func (r *Repository) UpdateRecipe(ctx context.Context, recipe *model.Recipe, opts RecipeUpdate) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE recipes
			SET title = $3, time_minutes = $4, price = $5::text::numeric, link = $6, updated_at = $7
			WHERE id = $1 AND user_id = $2
		`,
			recipe.ID,
			recipe.UserID,
			recipe.Title,
			recipe.TimeMinutes,
			recipe.Price,
			recipe.Link,
			recipe.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to update recipe: %w", err)
		}
		if result.RowsAffected() == 0 {
			return ErrRecipeNotFound
		}

		if opts.ReplaceTags {
			if err := replaceLinks(ctx, tx, TagKind, recipe.UserID, recipe.ID, recipe.TagIDs); err != nil {
				return err
			}
		}
		if opts.ReplaceIngredients {
			if err := replaceLinks(ctx, tx, IngredientKind, recipe.UserID, recipe.ID, recipe.IngredientIDs); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteRecipe removes a recipe owned by userID and returns its stored image path, if any.
func (r *Repository) DeleteRecipe(ctx context.Context, userID, id string) (string, error) {
	var image string
	err := r.pool.QueryRow(ctx,
		`DELETE FROM recipes WHERE id = $1 AND user_id = $2 RETURNING COALESCE(image, '')`,
		id, userID,
	).Scan(&image)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrRecipeNotFound
		}
		return "", fmt.Errorf("failed to delete recipe: %w", err)
	}
	return image, nil
}

// SetRecipeImage stores a new image path and returns the one it replaced.
func (r *Repository) SetRecipeImage(ctx context.Context, userID, id, image string) (string, error) {
	var previous string
	err := r.pool.QueryRow(ctx, `
		UPDATE recipes r
		SET image = $3, updated_at = NOW()
		FROM recipes old
		WHERE r.id = $1 AND r.user_id = $2 AND old.id = r.id
		RETURNING COALESCE(old.image, '')
	`, id, userID, image).Scan(&previous)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrRecipeNotFound
		}
		return "", fmt.Errorf("failed to set recipe image: %w", err)
	}
	return previous, nil
}

// replaceLinks swaps the link rows of one kind for a recipe after checking ownership.
func replaceLinks(ctx context.Context, tx pgx.Tx, kind AttributeKind, userID, recipeID string, ids []string) error {
	ids = dedupe(ids)

	if len(ids) > 0 {
		owned, err := countOwnedAttributes(ctx, tx, kind, userID, ids)
		if err != nil {
			return err
		}
		if owned != len(ids) {
			return fmt.Errorf("%w: %s", ErrForeignAttribute, kind.Name)
		}
	}

	if _, err := tx.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE recipe_id = $1`, kind.LinkTable), recipeID,
	); err != nil {
		return fmt.Errorf("failed to clear recipe %ss: %w", kind.Name, err)
	}

	if len(ids) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (recipe_id, %s)
		SELECT $1, unnest($2::varchar[])
	`, kind.LinkTable, kind.LinkColumn)
	if _, err := tx.Exec(ctx, query, recipeID, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to link recipe %ss: %w", kind.Name, err)
	}
	return nil
}

func (r *Repository) loadLinkIDs(ctx context.Context, kind AttributeKind, recipeIDs []string, add func(recipeID, id string)) error {
	query := fmt.Sprintf(`
		SELECT recipe_id, %[1]s
		FROM %[2]s
		WHERE recipe_id = ANY($1)
		ORDER BY recipe_id, %[1]s
	`, kind.LinkColumn, kind.LinkTable)

	rows, err := r.pool.Query(ctx, query, pq.Array(recipeIDs))
	if err != nil {
		return fmt.Errorf("failed to load recipe %ss: %w", kind.Name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var recipeID, id string
		if err := rows.Scan(&recipeID, &id); err != nil {
			return fmt.Errorf("failed to scan recipe %s: %w", kind.Name, err)
		}
		add(recipeID, id)
	}
	return rows.Err()
}

func (r *Repository) linkedAttributes(ctx context.Context, kind AttributeKind, recipeID string) ([]*model.Attribute, error) {
	query := fmt.Sprintf(`
		SELECT a.id, a.user_id, a.name, a.created_at
		FROM %s a
		JOIN %s l ON l.%s = a.id
		WHERE l.recipe_id = $1
		ORDER BY a.name, a.id
	`, kind.Table, kind.LinkTable, kind.LinkColumn)

	rows, err := r.pool.Query(ctx, query, recipeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get recipe %ss: %w", kind.Name, err)
	}
	defer rows.Close()

	var attrs []*model.Attribute
	for rows.Next() {
		attr, err := scanAttribute(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recipe %s: %w", kind.Name, err)
		}
		attrs = append(attrs, attr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recipe %ss: %w", kind.Name, err)
	}
	return attrs, nil
}

func scanRecipe(row rowScanner) (*model.Recipe, error) {
	var recipe model.Recipe
	err := row.Scan(
		&recipe.ID,
		&recipe.UserID,
		&recipe.Title,
		&recipe.TimeMinutes,
		&recipe.Price,
		&recipe.Link,
		&recipe.Image,
		&recipe.CreatedAt,
		&recipe.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	recipe.TagIDs = []string{}
	recipe.IngredientIDs = []string{}
	return &recipe, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
