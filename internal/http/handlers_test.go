package httpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthFlow(t *testing.T) {
	env := buildTestServer(t)

	ana := env.register(t, "ana")
	require.NotEmpty(t, ana.Token)

	rec := env.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"name": "Ana again", "email": "ANA@example.com", "password": "whatever1",
	})
	expectStatus(t, rec, http.StatusConflict)

	rec = env.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"name": "x", "email": "not-an-email", "password": "whatever1",
	})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	var errResp errorResponse
	decodeBody(t, rec, &errResp)
	assert.Equal(t, "VALIDATION_ERROR", errResp.Code)
	assert.Contains(t, errResp.Details, "email")

	rec = env.do(t, http.MethodPost, "/auth/register", "", `{"name":"x","email":"x@example.com","password":"secret1","role":"admin"}`)
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	rec = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "ana@example.com", "password": "password-ana"})
	expectStatus(t, rec, http.StatusOK)
	var login sessionResponse
	decodeBody(t, rec, &login)
	assert.Equal(t, ana.ID, login.User.ID)
	assert.Equal(t, "user", login.User.Role)

	rec = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "ana@example.com", "password": "nope"})
	expectStatus(t, rec, http.StatusUnauthorized)
	rec = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "ghost@example.com", "password": "nope"})
	expectStatus(t, rec, http.StatusUnauthorized)

	expectStatus(t, env.do(t, http.MethodGet, "/users/me", "", nil), http.StatusUnauthorized)
	expectStatus(t, env.do(t, http.MethodGet, "/users/me", "garbage", nil), http.StatusUnauthorized)

	rec = env.do(t, http.MethodGet, "/users/me", login.Token, nil)
	expectStatus(t, rec, http.StatusOK)
	var me userResponse
	decodeBody(t, rec, &me)
	assert.Equal(t, "ana@example.com", me.Email)
	assert.Equal(t, "/default/no-photo.png", me.PhotoURL)
}

func TestRegisterRejectsPasswordOverBcryptLimit(t *testing.T) {
	env := buildTestServer(t)

	rec := env.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"name": "Nuño", "email": "nuno@example.com", "password": strings.Repeat("ñ", 40),
	})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	var errResp errorResponse
	decodeBody(t, rec, &errResp)
	assert.Equal(t, "VALIDATION_ERROR", errResp.Code)

	rec = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "nuno@example.com", "password": strings.Repeat("ñ", 40),
	})
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestListRecipesRejectsForgedCursor(t *testing.T) {
	env := buildTestServer(t)

	forged := base64.URLEncoding.EncodeToString([]byte(`{"createdAt":"2024-01-01T00:00:00Z","id":"x"}`))
	rec := env.do(t, http.MethodGet, "/recipes?cursor="+url.QueryEscape(forged), "", nil)
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestUpdateProfile(t *testing.T) {
	env := buildTestServer(t)
	ana := env.register(t, "ana")

	rec := env.do(t, http.MethodPatch, "/users/me", ana.Token, map[string]string{"status": "  horneando  "})
	expectStatus(t, rec, http.StatusOK)
	var me userResponse
	decodeBody(t, rec, &me)
	require.NotNil(t, me.Status)
	assert.Equal(t, "horneando", *me.Status)
	assert.Equal(t, "ana", me.Name)

	rec = env.do(t, http.MethodPatch, "/users/me", ana.Token, `{"email":"evil@example.com"}`)
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	rec = env.do(t, http.MethodPatch, "/users/me", ana.Token, `{"name":"   "}`)
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	env.register(t, "anabel")
	rec = env.do(t, http.MethodGet, "/users/search?name=ANA", ana.Token, nil)
	expectStatus(t, rec, http.StatusOK)
	var list userListResponse
	decodeBody(t, rec, &list)
	assert.Len(t, list.Items, 2)
	for _, u := range list.Items {
		assert.Empty(t, u.Email, "search must not expose emails")
	}
	expectStatus(t, env.do(t, http.MethodGet, "/users/search", ana.Token, nil), http.StatusBadRequest)
}

func TestRecipeLifecycle(t *testing.T) {
	env := buildTestServer(t)
	chef := env.register(t, "chef")
	other := env.register(t, "other")
	admin := env.register(t, "admin")
	env.promote(t, admin.ID)

	recipe := env.createRecipe(t, chef, "Pan de elote")
	assert.Equal(t, "pending", recipe.Status)
	assert.Equal(t, chef.ID, recipe.Author.ID)
	assert.Equal(t, []string{"Postres", "Fácil"}, recipe.Categories)
	assert.Equal(t, []string{"Mezclar", "Hornear"}, recipe.Steps)
	require.Len(t, recipe.Ingredients, 3)
	first := recipe.Ingredients[0]
	require.NotNil(t, first.Quantity)
	require.NotNil(t, first.Unit)
	assert.Equal(t, 2.0, *first.Quantity)
	assert.Equal(t, "tazas", *first.Unit)
	assert.Equal(t, "harina", first.Name)
	assert.Equal(t, "sal", recipe.Ingredients[2].Name)
	assert.Nil(t, recipe.Ingredients[2].Quantity)

	path := "/recipes/" + recipe.ID
	expectStatus(t, env.do(t, http.MethodGet, path, "", nil), http.StatusNotFound)
	expectStatus(t, env.do(t, http.MethodGet, path, other.Token, nil), http.StatusNotFound)
	expectStatus(t, env.do(t, http.MethodGet, path, chef.Token, nil), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodGet, path, admin.Token, nil), http.StatusOK)

	var list recipeListResponse
	rec := env.do(t, http.MethodGet, "/recipes", "", nil)
	expectStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &list)
	assert.Empty(t, list.Items)

	rec = env.do(t, http.MethodGet, "/users/me/recipes", chef.Token, nil)
	expectStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &list)
	assert.Len(t, list.Items, 1)

	env.approve(t, admin, recipe.ID)
	expectStatus(t, env.do(t, http.MethodGet, path, "", nil), http.StatusOK)

	rec = env.do(t, http.MethodGet, "/recipes?ingredient=HARINA&category=postres", "", nil)
	expectStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &list)
	require.Len(t, list.Items, 1)
	assert.Equal(t, recipe.ID, list.Items[0].ID)

	expectStatus(t, env.do(t, http.MethodPatch, path, other.Token, map[string]int{"servings": 2}), http.StatusForbidden)
	expectStatus(t, env.do(t, http.MethodPatch, path, chef.Token, `{"likes":100}`), http.StatusUnprocessableEntity)
	expectStatus(t, env.do(t, http.MethodPatch, path, chef.Token, `{"servings":0}`), http.StatusUnprocessableEntity)

	rec = env.do(t, http.MethodPatch, path, chef.Token, map[string]interface{}{
		"servings":    6,
		"ingredients": "0.5 kg azúcar",
	})
	expectStatus(t, rec, http.StatusOK)
	var updated recipeResponse
	decodeBody(t, rec, &updated)
	assert.Equal(t, 6, updated.Servings)
	assert.Equal(t, "Pan de elote", updated.Name)
	require.Len(t, updated.Ingredients, 1)
	assert.Equal(t, "azucar", updated.Ingredients[0].Name)
	assert.Equal(t, "0.5 kg azúcar", updated.Ingredients[0].OriginalText)
	assert.Equal(t, 0.5, *updated.Ingredients[0].Quantity)

	expectStatus(t, env.do(t, http.MethodDelete, path, other.Token, nil), http.StatusForbidden)
	rec = env.do(t, http.MethodDelete, path, chef.Token, nil)
	expectStatus(t, rec, http.StatusNoContent)
	expectStatus(t, env.do(t, http.MethodGet, path, chef.Token, nil), http.StatusNotFound)
}

func TestCreateRecipeValidation(t *testing.T) {
	env := buildTestServer(t)
	chef := env.register(t, "chef")

	expectStatus(t, env.do(t, http.MethodPost, "/recipes", "", map[string]string{"name": "x"}), http.StatusUnauthorized)
	expectStatus(t, env.do(t, http.MethodPost, "/recipes", chef.Token, "invalid json"), http.StatusUnprocessableEntity)

	rec := env.do(t, http.MethodPost, "/recipes", chef.Token, map[string]interface{}{
		"name": "Sopa", "prepTimeMinutes": 0, "servings": 2, "difficulty": "extreme",
		"ingredients": "agua", "steps": "hervir",
	})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	var errResp errorResponse
	decodeBody(t, rec, &errResp)
	assert.Contains(t, errResp.Details, "prepTimeMinutes")
	assert.Contains(t, errResp.Details, "difficulty")

	rec = env.do(t, http.MethodPost, "/recipes", chef.Token, map[string]interface{}{
		"name": "Sopa", "prepTimeMinutes": 10, "servings": 2, "difficulty": "easy",
		"ingredients": "\n  \n", "steps": "hervir",
	})
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	expectStatus(t, env.do(t, http.MethodGet, "/recipes/not-a-uuid", "", nil), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodGet, "/recipes?limit=abc", "", nil), http.StatusBadRequest)
}

func TestRatingsFlow(t *testing.T) {
	env := buildTestServer(t)
	chef := env.register(t, "chef")
	admin := env.register(t, "admin")
	env.promote(t, admin.ID)
	rater1 := env.register(t, "rater1")
	rater2 := env.register(t, "rater2")

	recipe := env.createRecipe(t, chef, "Mole")
	env.approve(t, admin, recipe.ID)
	ratings := "/recipes/" + recipe.ID + "/ratings"

	var resp ratingSubmitResponse
	rec := env.do(t, http.MethodPost, ratings, rater1.Token, map[string]int{"score": 4})
	expectStatus(t, rec, http.StatusCreated)
	decodeBody(t, rec, &resp)
	assert.Equal(t, ratingSubmitResponse{Average: 4, Count: 1, YourScore: 4}, resp)

	rec = env.do(t, http.MethodPost, ratings, rater1.Token, map[string]int{"score": 2})
	expectStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &resp)
	assert.Equal(t, ratingSubmitResponse{Average: 2, Count: 1, YourScore: 2}, resp)

	rec = env.do(t, http.MethodPost, ratings, rater2.Token, map[string]int{"score": 5})
	expectStatus(t, rec, http.StatusCreated)
	decodeBody(t, rec, &resp)
	assert.Equal(t, ratingSubmitResponse{Average: 3.5, Count: 2, YourScore: 5}, resp)

	expectStatus(t, env.do(t, http.MethodPost, ratings, chef.Token, map[string]int{"score": 5}), http.StatusUnprocessableEntity)
	expectStatus(t, env.do(t, http.MethodPost, ratings, rater1.Token, map[string]int{"score": 6}), http.StatusUnprocessableEntity)
	expectStatus(t, env.do(t, http.MethodPost, ratings, rater1.Token, `{"score":3.5}`), http.StatusUnprocessableEntity)
	expectStatus(t, env.do(t, http.MethodPost, ratings, "", map[string]int{"score": 3}), http.StatusUnauthorized)
	expectStatus(t, env.do(t, http.MethodPost, "/recipes/00000000-0000-0000-0000-000000000000/ratings", rater1.Token, map[string]int{"score": 3}), http.StatusNotFound)

	var mine myRatingResponse
	rec = env.do(t, http.MethodGet, ratings+"/me", rater1.Token, nil)
	expectStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &mine)
	assert.Equal(t, 2, mine.Score)

	rec = env.do(t, http.MethodGet, ratings+"/me", admin.Token, nil)
	expectStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &mine)
	assert.Equal(t, 0, mine.Score)

	var agg ratingAggregateResponse
	rec = env.do(t, http.MethodGet, "/recipes/"+recipe.ID+"/rating", "", nil)
	expectStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &agg)
	assert.Equal(t, ratingAggregateResponse{Average: 3.5, Count: 2}, agg)
}

func TestLikesAndFavorites(t *testing.T) {
	env := buildTestServer(t)
	chef := env.register(t, "chef")
	fan := env.register(t, "fan")
	admin := env.register(t, "admin")
	env.promote(t, admin.ID)

	recipe := env.createRecipe(t, chef, "Churros")
	like := "/recipes/" + recipe.ID + "/like"

	expectStatus(t, env.do(t, http.MethodPost, like, fan.Token, nil), http.StatusNotFound)
	env.approve(t, admin, recipe.ID)

	var resp likeResponse
	rec := env.do(t, http.MethodPost, like, fan.Token, nil)
	expectStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &resp)
	assert.Equal(t, likeResponse{Liked: true, Likes: 1}, resp)

	var favs recipeListResponse
	rec = env.do(t, http.MethodGet, "/users/me/favorites", fan.Token, nil)
	expectStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &favs)
	require.Len(t, favs.Items, 1)
	assert.Equal(t, int64(1), favs.Items[0].Likes)

	rec = env.do(t, http.MethodPost, like, fan.Token, nil)
	expectStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &resp)
	assert.Equal(t, likeResponse{Liked: false, Likes: 0}, resp)

	expectStatus(t, env.do(t, http.MethodPost, like, chef.Token, nil), http.StatusUnprocessableEntity)
}

func TestFollowFlow(t *testing.T) {
	env := buildTestServer(t)
	ana := env.register(t, "ana")
	luis := env.register(t, "luis")

	follow := fmt.Sprintf("/users/%s/follow", ana.ID)
	expectStatus(t, env.do(t, http.MethodPut, follow, luis.Token, nil), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodPut, follow, luis.Token, nil), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodPut, follow, ana.Token, nil), http.StatusUnprocessableEntity)
	expectStatus(t, env.do(t, http.MethodPut, "/users/00000000-0000-0000-0000-000000000000/follow", ana.Token, nil), http.StatusNotFound)

	var list userListResponse
	rec := env.do(t, http.MethodGet, fmt.Sprintf("/users/%s/followers", ana.ID), luis.Token, nil)
	expectStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &list)
	require.Len(t, list.Items, 1)
	assert.Equal(t, luis.ID, list.Items[0].ID)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/users/%s/following", luis.ID), ana.Token, nil)
	expectStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &list)
	require.Len(t, list.Items, 1)
	assert.Equal(t, ana.ID, list.Items[0].ID)

	expectStatus(t, env.do(t, http.MethodDelete, follow, luis.Token, nil), http.StatusNoContent)
	rec = env.do(t, http.MethodGet, fmt.Sprintf("/users/%s/followers", ana.ID), luis.Token, nil)
	decodeBody(t, rec, &list)
	assert.Empty(t, list.Items)
}

func TestAdministration(t *testing.T) {
	env := buildTestServer(t)
	chef := env.register(t, "chef")
	admin := env.register(t, "admin")
	env.promote(t, admin.ID)

	expectStatus(t, env.do(t, http.MethodGet, "/admin/recipes/stats", chef.Token, nil), http.StatusForbidden)

	first := env.createRecipe(t, chef, "Uno")
	second := env.createRecipe(t, chef, "Dos")

	var pending recipeListResponse
	rec := env.do(t, http.MethodGet, "/admin/recipes/pending", admin.Token, nil)
	expectStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &pending)
	assert.Len(t, pending.Items, 2)

	env.approve(t, admin, first.ID)
	expectStatus(t, env.do(t, http.MethodPut, "/admin/recipes/"+second.ID+"/reject", admin.Token, nil), http.StatusOK)

	var stats recipeStatsResponse
	rec = env.do(t, http.MethodGet, "/admin/recipes/stats", admin.Token, nil)
	expectStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &stats)
	assert.Equal(t, recipeStatsResponse{Total: 2, Pending: 0, Approved: 1, Rejected: 1}, stats)

	state := "/admin/users/" + chef.ID + "/state"
	expectStatus(t, env.do(t, http.MethodPut, state, admin.Token, map[string]string{"state": "frozen"}), http.StatusUnprocessableEntity)
	expectStatus(t, env.do(t, http.MethodPut, "/admin/users/"+admin.ID+"/state", admin.Token, map[string]string{"state": "deactivated"}), http.StatusUnprocessableEntity)
	expectStatus(t, env.do(t, http.MethodPut, state, admin.Token, map[string]string{"state": "deactivated"}), http.StatusOK)

	expectStatus(t, env.do(t, http.MethodGet, "/users/me", chef.Token, nil), http.StatusForbidden)
	rec = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "chef@example.com", "password": "password-chef"})
	expectStatus(t, rec, http.StatusForbidden)

	var userStats userStatsResponse
	rec = env.do(t, http.MethodGet, "/admin/users/stats", admin.Token, nil)
	expectStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &userStats)
	assert.Equal(t, userStatsResponse{Total: 2, Active: 1, Deactivated: 1}, userStats)
}

func TestUploadRecipeImage(t *testing.T) {
	env := buildTestServer(t)
	chef := env.register(t, "chef")
	other := env.register(t, "other")
	recipe := env.createRecipe(t, chef, "Tamales")
	path := "/recipes/" + recipe.ID + "/image"

	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)

	rec := env.upload(t, path, chef.Token, "image", "tamales.png", png)
	expectStatus(t, rec, http.StatusOK)
	var updated recipeResponse
	decodeBody(t, rec, &updated)
	require.NotNil(t, updated.ImageURL)
	assert.True(t, strings.HasPrefix(*updated.ImageURL, "/uploads/recipes/"), *updated.ImageURL)
	assert.True(t, strings.HasSuffix(*updated.ImageURL, ".png"), *updated.ImageURL)

	fileRec := env.do(t, http.MethodGet, *updated.ImageURL, "", nil)
	expectStatus(t, fileRec, http.StatusOK)
	assert.Equal(t, png, fileRec.Body.Bytes())

	// Pending recipes are invisible to everyone but the author.
	expectStatus(t, env.upload(t, path, other.Token, "image", "x.png", png), http.StatusNotFound)
	expectStatus(t, env.upload(t, path, chef.Token, "image", "notes.txt", []byte("plain text")), http.StatusUnprocessableEntity)
	expectStatus(t, env.upload(t, path, chef.Token, "wrong", "x.png", png), http.StatusUnprocessableEntity)

	rec = env.upload(t, "/users/me/photo", chef.Token, "photo", "me.png", png)
	expectStatus(t, rec, http.StatusOK)
	var me userResponse
	decodeBody(t, rec, &me)
	assert.True(t, strings.HasPrefix(me.PhotoURL, "/uploads/users/"), me.PhotoURL)
}

func (env *testEnv) upload(tb testing.TB, path, token, field, filename string, data []byte) *httptest.ResponseRecorder {
	tb.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		tb.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		tb.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		tb.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPut, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.srv.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	env := buildTestServer(t)
	expectStatus(t, env.do(t, http.MethodGet, "/healthz", "", nil), http.StatusOK)

	env.srv.store = nil
	expectStatus(t, env.do(t, http.MethodGet, "/healthz", "", nil), http.StatusServiceUnavailable)
}

func TestDeletedUserTokenRejected(t *testing.T) {
	env := buildTestServer(t)
	ghost := env.register(t, "ghost")
	if _, err := env.db.Pool.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, ghost.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	expectStatus(t, env.do(t, http.MethodGet, "/users/me", ghost.Token, nil), http.StatusUnauthorized)
}
