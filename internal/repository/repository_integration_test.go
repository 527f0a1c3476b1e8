//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cselefendi/recipe-app-api/internal/model"
	"github.com/cselefendi/recipe-app-api/internal/testutil"
)

func newRepoTestEnv(t *testing.T) (context.Context, *Repository) {
	t.Helper()
	ctx, pool := newMigrationTestEnv(t)
	return ctx, NewWithPool(pool)
}

func createUser(t *testing.T, ctx context.Context, repo *Repository) *model.User {
	t.Helper()
	user := testutil.NewTestUser(t, testutil.UniqueEmail("user"))
	require.NoError(t, repo.CreateUser(ctx, user))
	return user
}

func createAttr(t *testing.T, ctx context.Context, repo *Repository, kind AttributeKind, userID, name string) *model.Attribute {
	t.Helper()
	attr := testutil.NewTestAttribute(t, userID, name)
	require.NoError(t, repo.CreateAttribute(ctx, kind, attr))
	return attr
}

func names(attrs []*model.Attribute) []string {
	out := make([]string, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, a.Name)
	}
	return out
}

func TestIntegrationUser_CreateAndGet(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	user := createUser(t, ctx, repo)

	byEmail, err := repo.GetUserByEmail(ctx, user.Email)
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	dup := testutil.NewTestUser(t, user.Email)
	assert.ErrorIs(t, repo.CreateUser(ctx, dup), ErrEmailExists)

	_, err = repo.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestIntegrationAuthToken_Lifecycle(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)
	user := createUser(t, ctx, repo)

	token := &model.AuthToken{
		ID:          testutil.UniqueID(),
		UserID:      user.ID,
		TokenHash:   "hash",
		TokenPrefix: "abc123",
		Name:        "login",
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, repo.CreateAuthToken(ctx, token))

	found, err := repo.GetAuthTokensByPrefix(ctx, "abc123")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, token.ID, found[0].ID)

	require.NoError(t, repo.UpdateAuthTokenLastUsed(ctx, token.ID))
	require.NoError(t, repo.RevokeAuthToken(ctx, token.ID))
	assert.ErrorIs(t, repo.RevokeAuthToken(ctx, token.ID), ErrTokenNotFound)

	found, err = repo.GetAuthTokensByPrefix(ctx, "abc123")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestIntegrationAttributes_ListScopedAndOrdered(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)
	owner := createUser(t, ctx, repo)
	other := createUser(t, ctx, repo)

	createAttr(t, ctx, repo, TagKind, owner.ID, "Dessert")
	createAttr(t, ctx, repo, TagKind, owner.ID, "Vegan")
	createAttr(t, ctx, repo, TagKind, other.ID, "Fruity")

	tags, err := repo.ListAttributes(ctx, TagKind, AttributeFilter{UserID: owner.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"Vegan", "Dessert"}, names(tags))
}

func TestIntegrationAttributes_AssignedOnlyIsDistinct(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)
	owner := createUser(t, ctx, repo)

	eggs := createAttr(t, ctx, repo, IngredientKind, owner.ID, "Eggs")
	createAttr(t, ctx, repo, IngredientKind, owner.ID, "Cheese")

	for _, title := range []string{"Eggs Benedict", "Herb Eggs"} {
		recipe := testutil.NewTestRecipe(t, owner.ID, title)
		recipe.IngredientIDs = []string{eggs.ID}
		require.NoError(t, repo.CreateRecipe(ctx, recipe))
	}

	assigned, err := repo.ListAttributes(ctx, IngredientKind, AttributeFilter{UserID: owner.ID, AssignedOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Eggs"}, names(assigned))
}

func TestIntegrationAttributes_UpdateDeleteOwnerOnly(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)
	owner := createUser(t, ctx, repo)
	other := createUser(t, ctx, repo)

	tag := createAttr(t, ctx, repo, TagKind, owner.ID, "Lunch")

	foreign := *tag
	foreign.UserID = other.ID
	foreign.Name = "Dinner"
	assert.ErrorIs(t, repo.UpdateAttribute(ctx, TagKind, &foreign), ErrAttributeNotFound)
	assert.ErrorIs(t, repo.DeleteAttribute(ctx, TagKind, other.ID, tag.ID), ErrAttributeNotFound)

	tag.Name = "Brunch"
	require.NoError(t, repo.UpdateAttribute(ctx, TagKind, tag))
	got, err := repo.GetAttribute(ctx, TagKind, owner.ID, tag.ID)
	require.NoError(t, err)
	assert.Equal(t, "Brunch", got.Name)

	require.NoError(t, repo.DeleteAttribute(ctx, TagKind, owner.ID, tag.ID))
	_, err = repo.GetAttribute(ctx, TagKind, owner.ID, tag.ID)
	assert.ErrorIs(t, err, ErrAttributeNotFound)
}

func TestIntegrationRecipes_CreateFilterAndDetail(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)
	owner := createUser(t, ctx, repo)

	vegan := createAttr(t, ctx, repo, TagKind, owner.ID, "Vegan")
	fish := createAttr(t, ctx, repo, TagKind, owner.ID, "Fish")
	tofu := createAttr(t, ctx, repo, IngredientKind, owner.ID, "Tofu")

	curry := testutil.NewTestRecipe(t, owner.ID, "Thai Vegetable Curry")
	curry.TagIDs = []string{vegan.ID}
	curry.IngredientIDs = []string{tofu.ID}
	require.NoError(t, repo.CreateRecipe(ctx, curry))

	chips := testutil.NewTestRecipe(t, owner.ID, "Fish and chips")
	chips.TagIDs = []string{fish.ID}
	chips.CreatedAt = curry.CreatedAt.Add(time.Second)
	require.NoError(t, repo.CreateRecipe(ctx, chips))

	plain := testutil.NewTestRecipe(t, owner.ID, "Plain toast")
	plain.CreatedAt = curry.CreatedAt.Add(2 * time.Second)
	require.NoError(t, repo.CreateRecipe(ctx, plain))

	all, err := repo.ListRecipes(ctx, RecipeFilter{UserID: owner.ID})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, plain.ID, all[0].ID)
	assert.Equal(t, curry.ID, all[2].ID)
	assert.Equal(t, []string{vegan.ID}, all[2].TagIDs)
	assert.Empty(t, all[0].TagIDs)

	filtered, err := repo.ListRecipes(ctx, RecipeFilter{UserID: owner.ID, TagIDs: []string{vegan.ID, fish.ID}})
	require.NoError(t, err)
	assert.Len(t, filtered, 2)

	byIngredient, err := repo.ListRecipes(ctx, RecipeFilter{UserID: owner.ID, IngredientIDs: []string{tofu.ID}})
	require.NoError(t, err)
	require.Len(t, byIngredient, 1)
	assert.Equal(t, curry.ID, byIngredient[0].ID)

	detail, err := repo.GetRecipeDetail(ctx, owner.ID, curry.ID)
	require.NoError(t, err)
	assert.Equal(t, "5.50", detail.Price)
	require.Len(t, detail.Tags, 1)
	assert.Equal(t, "Vegan", detail.Tags[0].Name)
	require.Len(t, detail.Ingredients, 1)
	assert.Equal(t, "Tofu", detail.Ingredients[0].Name)
}

func TestIntegrationRecipes_ForeignAttributeRejected(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)
	owner := createUser(t, ctx, repo)
	other := createUser(t, ctx, repo)

	foreign := createAttr(t, ctx, repo, TagKind, other.ID, "Theirs")

	recipe := testutil.NewTestRecipe(t, owner.ID, "Stolen")
	recipe.TagIDs = []string{foreign.ID}
	assert.ErrorIs(t, repo.CreateRecipe(ctx, recipe), ErrForeignAttribute)

	_, err := repo.GetRecipeDetail(ctx, owner.ID, recipe.ID)
	assert.ErrorIs(t, err, ErrRecipeNotFound)
}

func TestIntegrationRecipes_UpdateImageDelete(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)
	owner := createUser(t, ctx, repo)
	tag := createAttr(t, ctx, repo, TagKind, owner.ID, "Breakfast")

	recipe := testutil.NewTestRecipe(t, owner.ID, "Pancakes")
	recipe.TagIDs = []string{tag.ID}
	require.NoError(t, repo.CreateRecipe(ctx, recipe))

	recipe.Title = "Fluffy pancakes"
	recipe.TagIDs = nil
	require.NoError(t, repo.UpdateRecipe(ctx, recipe, RecipeUpdate{ReplaceTags: true}))

	detail, err := repo.GetRecipeDetail(ctx, owner.ID, recipe.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fluffy pancakes", detail.Title)
	assert.Empty(t, detail.Tags)

	prev, err := repo.SetRecipeImage(ctx, owner.ID, recipe.ID, "uploads/recipe/a.jpg")
	require.NoError(t, err)
	assert.Empty(t, prev)

	prev, err = repo.SetRecipeImage(ctx, owner.ID, recipe.ID, "uploads/recipe/b.jpg")
	require.NoError(t, err)
	assert.Equal(t, "uploads/recipe/a.jpg", prev)

	image, err := repo.DeleteRecipe(ctx, owner.ID, recipe.ID)
	require.NoError(t, err)
	assert.Equal(t, "uploads/recipe/b.jpg", image)

	_, err = repo.DeleteRecipe(ctx, owner.ID, recipe.ID)
	assert.ErrorIs(t, err, ErrRecipeNotFound)
}

