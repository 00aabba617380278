package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/Clark-Hu/recetas-api/internal/auth"
	"github.com/Clark-Hu/recetas-api/internal/config"
	"github.com/Clark-Hu/recetas-api/internal/media"
	"github.com/Clark-Hu/recetas-api/internal/pgtest"
	"github.com/Clark-Hu/recetas-api/internal/repository"
	"github.com/Clark-Hu/recetas-api/internal/store"
)

type testEnv struct {
	srv *Server
	db  *pgtest.DB
}

type session struct {
	Token string
	ID    string
}

func buildTestServer(tb testing.TB) *testEnv {
	tb.Helper()
	cfg := config.Config{
		Port:                "0",
		ReadTimeoutSecs:     15,
		WriteTimeoutSecs:    15,
		IdleTimeoutSecs:     60,
		CORSOrigins:         "*",
		MediaBackend:        config.MediaBackendDisk,
		MediaTimeoutSecs:    5,
		MediaMaxUploadBytes: 1 << 20,
	}

	db := pgtest.Start(tb, "recetas_test_handlers", true)
	logger := zerolog.Nop()

	tokens, err := auth.NewTokenManager("handler-test-secret-0123", time.Hour)
	if err != nil {
		tb.Fatalf("token manager: %v", err)
	}
	disk, err := media.NewDiskStore(tb.TempDir(), "/uploads", cfg.MediaMaxUploadBytes, logger)
	if err != nil {
		tb.Fatalf("disk store: %v", err)
	}

	srv := New(cfg, Deps{
		Store:     store.NewWithPool(db.Pool, logger),
		Repo:      repository.NewWithPool(db.Pool),
		Tokens:    tokens,
		Passwords: auth.NewPasswordHasher(bcrypt.MinCost),
		Media:     disk,
		Logger:    logger,
	})
	// Replace chi router to avoid default middleware noise.
	srv.router = chi.NewRouter()
	srv.registerRoutes()
	return &testEnv{srv: srv, db: db}
}

func (env *testEnv) do(tb testing.TB, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	tb.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		payload, err := json.Marshal(b)
		if err != nil {
			tb.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.srv.router.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) register(tb testing.TB, name string) session {
	tb.Helper()
	rec := env.do(tb, http.MethodPost, "/auth/register", "", map[string]string{
		"name":     name,
		"email":    name + "@example.com",
		"password": "password-" + name,
	})
	if rec.Code != http.StatusCreated {
		tb.Fatalf("register %s: status %d body %s", name, rec.Code, rec.Body.String())
	}
	var resp sessionResponse
	decodeBody(tb, rec, &resp)
	return session{Token: resp.Token, ID: resp.User.ID}
}

func (env *testEnv) promote(tb testing.TB, userID string) {
	tb.Helper()
	if _, err := env.db.Pool.Exec(context.Background(), `UPDATE users SET role = 'admin' WHERE id = $1`, userID); err != nil {
		tb.Fatalf("promote admin: %v", err)
	}
}

func (env *testEnv) createRecipe(tb testing.TB, author session, name string) recipeResponse {
	tb.Helper()
	rec := env.do(tb, http.MethodPost, "/recipes", author.Token, map[string]interface{}{
		"name":            name,
		"description":     "family recipe",
		"prepTimeMinutes": 45,
		"servings":        4,
		"difficulty":      "medium",
		"ingredients":     "2 tazas harina\n\n3 huevos\r\nsal",
		"steps":           "Mezclar\nHornear",
		"categories":      []string{" Postres ", "", "postres", "Fácil"},
	})
	if rec.Code != http.StatusCreated {
		tb.Fatalf("create recipe: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp recipeResponse
	decodeBody(tb, rec, &resp)
	return resp
}

func (env *testEnv) approve(tb testing.TB, admin session, recipeID string) {
	tb.Helper()
	rec := env.do(tb, http.MethodPut, fmt.Sprintf("/admin/recipes/%s/approve", recipeID), admin.Token, nil)
	if rec.Code != http.StatusOK {
		tb.Fatalf("approve: status %d body %s", rec.Code, rec.Body.String())
	}
}

func decodeBody(tb testing.TB, rec *httptest.ResponseRecorder, dst interface{}) {
	tb.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		tb.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func expectStatus(tb testing.TB, rec *httptest.ResponseRecorder, want int) {
	tb.Helper()
	if rec.Code != want {
		tb.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}
