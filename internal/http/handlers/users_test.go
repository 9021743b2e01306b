package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dkoller/taskhub/internal/auth"
	"github.com/dkoller/taskhub/internal/cache"
	"github.com/dkoller/taskhub/internal/domain/job"
	"github.com/dkoller/taskhub/internal/domain/user"
	"github.com/dkoller/taskhub/internal/http/handlers"
	"github.com/dkoller/taskhub/internal/http/middlewares"
	"github.com/dkoller/taskhub/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type fakeUsersRepo struct {
	createFn     func(ctx context.Context, u user.User) error
	getByEmailFn func(ctx context.Context, email string) (user.User, error)
	getByIDFn    func(ctx context.Context, id string) (user.User, error)
	updateFn     func(ctx context.Context, u user.User) (user.User, error)
	deleteFn     func(ctx context.Context, id string) error
}

func (f *fakeUsersRepo) Create(ctx context.Context, u user.User) error {
	if f.createFn != nil {
		return f.createFn(ctx, u)
	}
	return nil
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	if f.getByEmailFn != nil {
		return f.getByEmailFn(ctx, email)
	}
	return user.User{}, user.ErrNotFound
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return user.User{}, user.ErrNotFound
}

func (f *fakeUsersRepo) Update(ctx context.Context, u user.User) (user.User, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, u)
	}
	return u, nil
}

func (f *fakeUsersRepo) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

type fakeTokensRepo struct {
	added   []string
	removed []string
	cleared []string

	addErr error
}

func (f *fakeTokensRepo) Add(ctx context.Context, userID, tokenHash string) error {
	f.added = append(f.added, tokenHash)
	return f.addErr
}

func (f *fakeTokensRepo) Remove(ctx context.Context, userID, tokenHash string) error {
	f.removed = append(f.removed, tokenHash)
	return nil
}

func (f *fakeTokensRepo) RemoveAll(ctx context.Context, userID string) error {
	f.cleared = append(f.cleared, userID)
	return nil
}

type fakeJobsRepo struct {
	created []job.CreateRequest
	err     error
}

func (f *fakeJobsRepo) Create(ctx context.Context, req job.CreateRequest) (job.Job, error) {
	if f.err != nil {
		return job.Job{}, f.err
	}
	f.created = append(f.created, req)
	return job.New(req), nil
}

func newUsersHandler(users *fakeUsersRepo, tokens *fakeTokensRepo, jobsRepo *fakeJobsRepo) *handlers.UsersHandler {
	jwt := auth.NewManager("test-secret", time.Hour)
	return handlers.NewUsersHandler(users, tokens, jobsRepo, jwt, nil, nil, testLogger())
}

func asUser(u user.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		middlewares.SetUser(c, u)
		middlewares.SetToken(c, "raw-token")
		c.Next()
	}
}

func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSignUp(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		createErr  error
		wantStatus int
		wantJobs   int
	}{
		{
			name:       "valid signup",
			body:       gin.H{"name": "Mike", "email": "mike@example.com", "password": "sup3rsecret", "age": 30},
			wantStatus: http.StatusCreated,
			wantJobs:   1,
		},
		{
			name:       "missing name",
			body:       gin.H{"email": "mike@example.com", "password": "sup3rsecret"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "whitespace-only name",
			body:       gin.H{"name": "   ", "email": "mike@example.com", "password": "sup3rsecret"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad email",
			body:       gin.H{"name": "Mike", "email": "not-an-email", "password": "sup3rsecret"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "short password",
			body:       gin.H{"name": "Mike", "email": "mike@example.com", "password": "abc"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "password contains password",
			body:       gin.H{"name": "Mike", "email": "mike@example.com", "password": "MyPassword1"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "duplicate email",
			body:       gin.H{"name": "Mike", "email": "mike@example.com", "password": "sup3rsecret"},
			createErr:  user.ErrEmailTaken,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			users := &fakeUsersRepo{
				createFn: func(ctx context.Context, u user.User) error { return tc.createErr },
			}
			tokens := &fakeTokensRepo{}
			jobsRepo := &fakeJobsRepo{}

			h := newUsersHandler(users, tokens, jobsRepo)

			r := gin.New()
			r.POST("/users", h.SignUp)

			w := doJSON(r, http.MethodPost, "/users", tc.body)

			if w.Code != tc.wantStatus {
				t.Fatalf("got %d, want %d, body=%s", w.Code, tc.wantStatus, w.Body.String())
			}

			if len(jobsRepo.created) != tc.wantJobs {
				t.Fatalf("got %d jobs enqueued, want %d", len(jobsRepo.created), tc.wantJobs)
			}

			if tc.wantStatus == http.StatusCreated {
				var resp struct {
					User  user.User `json:"user"`
					Token string    `json:"token"`
				}
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("decode response: %v", err)
				}
				if resp.Token == "" {
					t.Fatal("expected a token in the response")
				}
				if len(tokens.added) != 1 {
					t.Fatalf("got %d tokens in the list, want 1", len(tokens.added))
				}
				if resp.User.Email != "mike@example.com" {
					t.Fatalf("got email %q", resp.User.Email)
				}
			}
		})
	}
}

func TestSignUp_HashNotExposed(t *testing.T) {
	users := &fakeUsersRepo{}
	h := newUsersHandler(users, &fakeTokensRepo{}, &fakeJobsRepo{})

	r := gin.New()
	r.POST("/users", h.SignUp)

	w := doJSON(r, http.MethodPost, "/users", gin.H{
		"name": "Mike", "email": "mike@example.com", "password": "sup3rsecret",
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("got %d, want 201", w.Code)
	}

	var raw map[string]json.RawMessage
	_ = json.Unmarshal(w.Body.Bytes(), &raw)

	var userFields map[string]json.RawMessage
	_ = json.Unmarshal(raw["user"], &userFields)

	for _, forbidden := range []string{"password", "passwordHash", "password_hash"} {
		if _, ok := userFields[forbidden]; ok {
			t.Fatalf("response leaked %q", forbidden)
		}
	}
}

func TestLogin(t *testing.T) {
	hash, err := security.HashPassword("sup3rsecret")
	if err != nil {
		t.Fatal(err)
	}

	known := user.User{ID: "u1", Name: "Mike", Email: "mike@example.com", PasswordHash: hash}

	tests := []struct {
		name       string
		body       any
		wantStatus int
	}{
		{
			name:       "correct credentials",
			body:       gin.H{"email": "mike@example.com", "password": "sup3rsecret"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong password",
			body:       gin.H{"email": "mike@example.com", "password": "wrongpass"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown email",
			body:       gin.H{"email": "nobody@example.com", "password": "sup3rsecret"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing password",
			body:       gin.H{"email": "mike@example.com"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			users := &fakeUsersRepo{
				getByEmailFn: func(ctx context.Context, email string) (user.User, error) {
					if email == known.Email {
						return known, nil
					}
					return user.User{}, user.ErrNotFound
				},
			}
			tokens := &fakeTokensRepo{}

			h := newUsersHandler(users, tokens, &fakeJobsRepo{})

			r := gin.New()
			r.POST("/users/login", h.Login)

			w := doJSON(r, http.MethodPost, "/users/login", tc.body)

			if w.Code != tc.wantStatus {
				t.Fatalf("got %d, want %d, body=%s", w.Code, tc.wantStatus, w.Body.String())
			}

			if tc.wantStatus == http.StatusOK && len(tokens.added) != 1 {
				t.Fatalf("got %d tokens added, want 1", len(tokens.added))
			}
		})
	}
}

func TestLogout_RemovesPresentedToken(t *testing.T) {
	tokens := &fakeTokensRepo{}
	h := newUsersHandler(&fakeUsersRepo{}, tokens, &fakeJobsRepo{})

	r := gin.New()
	r.POST("/users/logout", asUser(user.User{ID: "u1"}), h.Logout)

	w := doJSON(r, http.MethodPost, "/users/logout", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200, body=%s", w.Code, w.Body.String())
	}

	if len(tokens.removed) != 1 {
		t.Fatalf("got %d removals, want 1", len(tokens.removed))
	}
}

func TestLogoutAll_ClearsList(t *testing.T) {
	tokens := &fakeTokensRepo{}
	h := newUsersHandler(&fakeUsersRepo{}, tokens, &fakeJobsRepo{})

	r := gin.New()
	r.POST("/users/logoutAll", asUser(user.User{ID: "u1"}), h.LogoutAll)

	w := doJSON(r, http.MethodPost, "/users/logoutAll", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", w.Code)
	}

	if len(tokens.cleared) != 1 || tokens.cleared[0] != "u1" {
		t.Fatalf("RemoveAll not called for u1: %v", tokens.cleared)
	}
}

func TestGetMe(t *testing.T) {
	h := newUsersHandler(&fakeUsersRepo{}, &fakeTokensRepo{}, &fakeJobsRepo{})

	r := gin.New()
	r.GET("/users/me", asUser(user.User{ID: "u1", Name: "Mike", Email: "mike@example.com"}), h.GetMe)

	w := doJSON(r, http.MethodGet, "/users/me", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", w.Code)
	}

	var got user.User
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "u1" || got.Email != "mike@example.com" {
		t.Fatalf("unexpected profile: %+v", got)
	}
}

func TestUpdateMe(t *testing.T) {
	me := user.User{ID: "u1", Name: "Mike", Email: "mike@example.com", PasswordHash: "$stored", Age: 30}

	tests := []struct {
		name       string
		body       string
		updateErr  error
		wantStatus int
		check      func(t *testing.T, written *user.User)
	}{
		{
			name:       "update name and age",
			body:       `{"name":"Michael","age":31}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, written *user.User) {
				if written.Name != "Michael" || written.Age != 31 {
					t.Fatalf("update not applied: %+v", written)
				}
				if written.Email != me.Email {
					t.Fatal("email should be untouched")
				}
			},
		},
		{
			name:       "unknown key rejects whole update",
			body:       `{"name":"Michael","height":180}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "whitespace-only name rejected",
			body:       `{"name":"   "}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "empty name rejected",
			body:       `{"name":""}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "id is not updatable",
			body:       `{"id":"other"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "password gets rehashed",
			body:       `{"password":"n3wsecret!"}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, written *user.User) {
				if written.PasswordHash == "$stored" || written.PasswordHash == "n3wsecret!" {
					t.Fatal("password not rehashed before persisting")
				}
			},
		},
		{
			name:       "weak password rejected",
			body:       `{"password":"password123"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid email rejected",
			body:       `{"email":"not-an-email"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "email collision",
			body:       `{"email":"taken@example.com"}`,
			updateErr:  user.ErrEmailTaken,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var written *user.User

			users := &fakeUsersRepo{
				updateFn: func(ctx context.Context, u user.User) (user.User, error) {
					if tc.updateErr != nil {
						return user.User{}, tc.updateErr
					}
					written = &u
					return u, nil
				},
			}

			h := newUsersHandler(users, &fakeTokensRepo{}, &fakeJobsRepo{})

			r := gin.New()
			r.PATCH("/users/me", asUser(me), h.UpdateMe)

			req := httptest.NewRequest(http.MethodPatch, "/users/me", bytes.NewBufferString(tc.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("got %d, want %d, body=%s", w.Code, tc.wantStatus, w.Body.String())
			}

			if tc.wantStatus == http.StatusBadRequest && written != nil {
				t.Fatal("rejected update must not reach the repository")
			}

			if tc.check != nil {
				if written == nil {
					t.Fatal("expected a repository write")
				}
				tc.check(t, written)
			}
		})
	}
}

func TestDeleteMe(t *testing.T) {
	me := user.User{ID: "u1", Name: "Mike", Email: "mike@example.com"}

	deleted := []string{}
	users := &fakeUsersRepo{
		deleteFn: func(ctx context.Context, id string) error {
			deleted = append(deleted, id)
			return nil
		},
	}
	jobsRepo := &fakeJobsRepo{}

	h := newUsersHandler(users, &fakeTokensRepo{}, jobsRepo)

	r := gin.New()
	r.DELETE("/users/me", asUser(me), h.DeleteMe)

	w := doJSON(r, http.MethodDelete, "/users/me", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200, body=%s", w.Code, w.Body.String())
	}

	if len(deleted) != 1 || deleted[0] != "u1" {
		t.Fatalf("delete not called for u1: %v", deleted)
	}

	// cancellation mail enqueued with a self-contained payload
	if len(jobsRepo.created) != 1 {
		t.Fatalf("got %d jobs, want 1", len(jobsRepo.created))
	}

	var got user.User
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "u1" {
		t.Fatalf("expected the deleted user back, got %+v", got)
	}
}

func TestDeleteMe_EnqueueFailureStillSucceeds(t *testing.T) {
	jobsRepo := &fakeJobsRepo{err: errors.New("outbox unavailable")}

	h := newUsersHandler(&fakeUsersRepo{}, &fakeTokensRepo{}, jobsRepo)

	r := gin.New()
	r.DELETE("/users/me", asUser(user.User{ID: "u1"}), h.DeleteMe)

	w := doJSON(r, http.MethodDelete, "/users/me", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("email enqueue failure must not fail the request: got %d", w.Code)
	}
}

func TestDeleteMe_InvalidatesCachedAvatar(t *testing.T) {
	me := user.User{ID: uuid.NewString()}
	img := []byte("png-bytes")

	deleted := false

	users := &fakeUsersRepo{
		deleteFn: func(ctx context.Context, id string) error {
			deleted = true
			return nil
		},
	}
	store := &fakeAvatarStore{
		getFn: func(ctx context.Context, id string) ([]byte, error) {
			if deleted {
				return nil, user.ErrAvatarNotFound
			}
			return img, nil
		},
	}

	// same cache instance behind both handlers, as the router wires it
	shared := cache.New(time.Minute)

	jwt := auth.NewManager("test-secret", time.Hour)
	usersH := handlers.NewUsersHandler(users, &fakeTokensRepo{}, &fakeJobsRepo{}, jwt, nil, shared, testLogger())
	avatarH := handlers.NewAvatarHandler(store, shared, testLogger())

	r := gin.New()
	r.DELETE("/users/me", asUser(me), usersH.DeleteMe)
	r.GET("/users/:id/avatar", avatarH.GetByID)

	// prime the cache
	w := doJSON(r, http.MethodGet, "/users/"+me.ID+"/avatar", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("priming fetch: got %d", w.Code)
	}

	w = doJSON(r, http.MethodDelete, "/users/me", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: got %d", w.Code)
	}

	// the cached image must not outlive the account
	w = doJSON(r, http.MethodGet, "/users/"+me.ID+"/avatar", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("avatar served after account deletion: got %d", w.Code)
	}
}

func TestLogoutAll_SecondCallStillSucceeds(t *testing.T) {
	tokens := &fakeTokensRepo{}
	h := newUsersHandler(&fakeUsersRepo{}, tokens, &fakeJobsRepo{})

	r := gin.New()
	r.POST("/users/logoutAll", asUser(user.User{ID: "u1"}), h.LogoutAll)

	for i := 0; i < 2; i++ {
		w := doJSON(r, http.MethodPost, "/users/logoutAll", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("call %d: got %d, want 200", i+1, w.Code)
		}
	}

	// clearing an already-empty list is just another clear
	if len(tokens.cleared) != 2 {
		t.Fatalf("got %d RemoveAll calls, want 2", len(tokens.cleared))
	}
}

func TestLogin_SecondLoginAppendsDistinctToken(t *testing.T) {
	hash, err := security.HashPassword("sup3rsecret")
	if err != nil {
		t.Fatal(err)
	}

	known := user.User{ID: "u1", Email: "mike@example.com", PasswordHash: hash}

	users := &fakeUsersRepo{
		getByEmailFn: func(ctx context.Context, email string) (user.User, error) {
			return known, nil
		},
	}
	tokens := &fakeTokensRepo{}

	h := newUsersHandler(users, tokens, &fakeJobsRepo{})

	r := gin.New()
	r.POST("/users/login", h.Login)

	issued := make([]string, 0, 2)

	for i := 0; i < 2; i++ {
		w := doJSON(r, http.MethodPost, "/users/login", gin.H{"email": "mike@example.com", "password": "sup3rsecret"})
		if w.Code != http.StatusOK {
			t.Fatalf("login %d: got %d", i+1, w.Code)
		}

		var resp struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		issued = append(issued, resp.Token)
	}

	if issued[0] == issued[1] {
		t.Fatal("second login must mint a distinct token")
	}

	// both sessions live in the token list side by side
	if len(tokens.added) != 2 {
		t.Fatalf("got %d token list entries, want 2", len(tokens.added))
	}
	if tokens.added[0] == tokens.added[1] {
		t.Fatal("token list entries must be distinct digests")
	}
}
