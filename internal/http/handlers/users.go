package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dkoller/taskhub/internal/cache"
	"github.com/dkoller/taskhub/internal/config"
	"github.com/dkoller/taskhub/internal/domain/job"
	"github.com/dkoller/taskhub/internal/domain/user"
	"github.com/dkoller/taskhub/internal/http/middlewares"
	"github.com/dkoller/taskhub/internal/jobs"
	"github.com/dkoller/taskhub/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// Repository interfaces are declared handler-side so tests can swap in
// fakes without a database.

type UsersRepository interface {
	Create(ctx context.Context, u user.User) error
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	Update(ctx context.Context, u user.User) (user.User, error)
	Delete(ctx context.Context, id string) error
}

type TokensRepository interface {
	Add(ctx context.Context, userID, tokenHash string) error
	Remove(ctx context.Context, userID, tokenHash string) error
	RemoveAll(ctx context.Context, userID string) error
}

type JobsEnqueuer interface {
	Create(ctx context.Context, req job.CreateRequest) (job.Job, error)
}

type TokenIssuer interface {
	GenerateToken(userID string) (string, error)
	HashToken(raw string) string
}

// Nudger wakes the email worker after an enqueue. Optional; nil means
// the worker finds the job on its next poll tick.
type Nudger interface {
	Nudge(ctx context.Context, jobID string)
}

type UsersHandler struct {
	users   UsersRepository
	tokens  TokensRepository
	jobs    JobsEnqueuer
	jwt     TokenIssuer
	nudger  Nudger
	avatars *cache.Cache
	log     *slog.Logger
}

// NewUsersHandler shares the avatar cache with the avatar handler so
// deleting an account also drops its cached image.
func NewUsersHandler(users UsersRepository, tokens TokensRepository, jobsRepo JobsEnqueuer, jwt TokenIssuer, nudger Nudger, avatars *cache.Cache, log *slog.Logger) *UsersHandler {
	return &UsersHandler{
		users:   users,
		tokens:  tokens,
		jobs:    jobsRepo,
		jwt:     jwt,
		nudger:  nudger,
		avatars: avatars,
		log:     log,
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// SignUp creates the account and logs the caller straight in: the
// response carries both the user and a fresh token already added to the
// token list.
func (h *UsersHandler) SignUp(ctx *gin.Context) {
	var req user.CreateUserRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// required is checked against the trimmed value; "   " is not a name
	if strings.TrimSpace(req.Name) == "" {
		RespondBadRequest(ctx, "invalid_request", "Name must not be blank")
		return
	}

	err := security.ValidatePassword(req.Password)

	if err != nil {
		RespondBadRequest(ctx, "weak_password", err.Error())
		return
	}

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		RespondInternal(ctx, "Could not process password")
		return
	}

	u := user.NewFromCreateRequest(req, hash)

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	err = h.users.Create(cctx, u)

	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			RespondBadRequest(ctx, "email_taken", "Email already in use")
			return
		}

		h.log.Error("signup: create user", "error", err)
		RespondInternal(ctx, "Could not create user")
		return
	}

	token, err := h.issueToken(cctx, u.ID)

	if err != nil {
		h.log.Error("signup: issue token", "error", err, "user_id", u.ID)
		RespondInternal(ctx, "Could not issue token")
		return
	}

	h.enqueueEmail(ctx, jobs.TypeWelcomeEmail, u)

	ctx.JSON(http.StatusCreated, gin.H{
		"user":  u,
		"token": token,
	})
}

// Login deliberately answers every failure the same way; callers cannot
// probe which emails exist.
func (h *UsersHandler) Login(ctx *gin.Context) {
	var req loginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	u, err := h.users.GetByEmail(cctx, req.Email)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondBadRequest(ctx, "login_failed", "Unable to login")
			return
		}

		h.log.Error("login: get user", "error", err)
		RespondInternal(ctx, "Unable to login")
		return
	}

	if security.CheckPassword(u.PasswordHash, req.Password) != nil {
		RespondBadRequest(ctx, "login_failed", "Unable to login")
		return
	}

	token, err := h.issueToken(cctx, u.ID)

	if err != nil {
		h.log.Error("login: issue token", "error", err, "user_id", u.ID)
		RespondInternal(ctx, "Could not issue token")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"user":  u,
		"token": token,
	})
}

// Logout revokes exactly the session that made the call.
func (h *UsersHandler) Logout(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)
	raw, okTok := middlewares.TokenFromContext(ctx)

	if !ok || !okTok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authenticated")
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	err := h.tokens.Remove(cctx, u.ID, h.jwt.HashToken(raw))

	if err != nil {
		h.log.Error("logout: remove token", "error", err, "user_id", u.ID)
		RespondInternal(ctx, "Could not log out")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// LogoutAll clears the whole token list. Running it twice is harmless.
func (h *UsersHandler) LogoutAll(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authenticated")
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	err := h.tokens.RemoveAll(cctx, u.ID)

	if err != nil {
		h.log.Error("logoutAll: remove tokens", "error", err, "user_id", u.ID)
		RespondInternal(ctx, "Could not log out")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Logged out everywhere"})
}

func (h *UsersHandler) GetMe(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authenticated")
		return
	}

	ctx.JSON(http.StatusOK, u)
}

// UpdateMe applies a partial profile update. The body's keys are checked
// against the whitelist first; one unknown key rejects the whole request
// instead of silently dropping it.
func (h *UsersHandler) UpdateMe(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authenticated")
		return
	}

	body, err := io.ReadAll(ctx.Request.Body)

	if err != nil {
		RespondBadRequest(ctx, "invalid_request", "Could not read request body")
		return
	}

	keys, err := bodyKeys(body)

	if err != nil {
		RespondBadRequest(ctx, "invalid_request", "Invalid request body")
		return
	}

	if user.ValidateUpdateKeys(keys) != nil {
		RespondBadRequest(ctx, "invalid_updates", "Invalid updates")
		return
	}

	var req user.UpdateUserRequest

	if err := json.Unmarshal(body, &req); err != nil {
		RespondBadRequest(ctx, "invalid_request", "Invalid request body")
		return
	}

	if err := binding.Validator.ValidateStruct(&req); err != nil {
		RespondError(ctx, http.StatusBadRequest, "invalid_request", "Invalid request body", parseBindError(err, &req))
		return
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			RespondBadRequest(ctx, "invalid_request", "Name must not be blank")
			return
		}
		u.Name = name
	}

	if req.Email != nil {
		u.Email = user.NormalizeEmail(*req.Email)
	}

	if req.Age != nil {
		u.Age = *req.Age
	}

	if req.Password != nil {
		if err := security.ValidatePassword(*req.Password); err != nil {
			RespondBadRequest(ctx, "weak_password", err.Error())
			return
		}

		hash, err := security.HashPassword(*req.Password)

		if err != nil {
			RespondInternal(ctx, "Could not process password")
			return
		}

		u.PasswordHash = hash
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	updated, err := h.users.Update(cctx, u)

	if err != nil {
		switch {
		case errors.Is(err, user.ErrEmailTaken):
			RespondBadRequest(ctx, "email_taken", "Email already in use")
		case errors.Is(err, user.ErrNotFound):
			RespondNotFound(ctx, "User not found")
		default:
			h.log.Error("updateMe: update user", "error", err, "user_id", u.ID)
			RespondInternal(ctx, "Could not update user")
		}
		return
	}

	ctx.JSON(http.StatusOK, updated)
}

// DeleteMe removes the account. Tokens and tasks cascade away in the
// same statement; the cancellation email payload is captured first since
// the user row is gone by the time the worker runs.
func (h *UsersHandler) DeleteMe(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authenticated")
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	err := h.users.Delete(cctx, u.ID)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		h.log.Error("deleteMe: delete user", "error", err, "user_id", u.ID)
		RespondInternal(ctx, "Could not delete user")
		return
	}

	// the public avatar endpoint must not serve the deleted user's
	// image out of cache for the rest of the TTL
	if h.avatars != nil {
		h.avatars.Delete(avatarCacheKey(u.ID))
	}

	h.enqueueEmail(ctx, jobs.TypeCancellationEmail, u)

	ctx.JSON(http.StatusOK, u)
}

func (h *UsersHandler) issueToken(ctx context.Context, userID string) (string, error) {
	token, err := h.jwt.GenerateToken(userID)

	if err != nil {
		return "", err
	}

	if err := h.tokens.Add(ctx, userID, h.jwt.HashToken(token)); err != nil {
		return "", err
	}

	return token, nil
}

// enqueueEmail is best effort: the account mutation already succeeded,
// so a failed enqueue is logged, not surfaced.
func (h *UsersHandler) enqueueEmail(ctx *gin.Context, jobType string, u user.User) {
	payload, err := jobs.EmailPayload{
		UserID:      u.ID,
		Email:       u.Email,
		Name:        u.Name,
		RequestedAt: time.Now().UTC(),
	}.JSON()

	if err != nil {
		h.log.Error("enqueue email: encode payload", "error", err, "type", jobType)
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	j, err := h.jobs.Create(cctx, job.CreateRequest{
		Type:    jobType,
		Payload: payload,
	})

	if err != nil {
		h.log.Error("enqueue email: create job", "error", err, "type", jobType, "user_id", u.ID)
		return
	}

	if h.nudger != nil {
		h.nudger.Nudge(cctx, j.ID)
	}
}

// bodyKeys returns the top-level keys of a JSON object body.
func bodyKeys(body []byte) ([]string, error) {
	var m map[string]json.RawMessage

	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(m))

	for k := range m {
		keys = append(keys, k)
	}

	return keys, nil
}
