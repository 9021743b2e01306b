package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dkoller/taskhub/internal/avatar"
	"github.com/dkoller/taskhub/internal/cache"
	"github.com/dkoller/taskhub/internal/config"
	"github.com/dkoller/taskhub/internal/domain/user"
	"github.com/dkoller/taskhub/internal/http/middlewares"
	"github.com/dkoller/taskhub/internal/utils"
	"github.com/gin-gonic/gin"
)

type AvatarStore interface {
	SetAvatar(ctx context.Context, id string, image []byte) error
	ClearAvatar(ctx context.Context, id string) error
	GetAvatar(ctx context.Context, id string) ([]byte, error)
}

type AvatarHandler struct {
	store AvatarStore
	cache *cache.Cache
	log   *slog.Logger
}

func NewAvatarHandler(store AvatarStore, c *cache.Cache, log *slog.Logger) *AvatarHandler {
	return &AvatarHandler{store: store, cache: c, log: log}
}

func avatarCacheKey(userID string) string {
	return "avatar:" + userID
}

// Upload takes a multipart form with the image under the "avatar" field,
// normalizes it to a 250x250 PNG and stores it on the user row.
func (h *AvatarHandler) Upload(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authenticated")
		return
	}

	fileHeader, err := ctx.FormFile("avatar")

	if err != nil {
		RespondBadRequest(ctx, "missing_file", `Expected a file under the "avatar" field`)
		return
	}

	if err := avatar.CheckFilename(fileHeader.Filename); err != nil {
		RespondBadRequest(ctx, "bad_extension", err.Error())
		return
	}

	if fileHeader.Size > avatar.MaxUploadBytes {
		RespondBadRequest(ctx, "too_large", avatar.ErrTooLarge.Error())
		return
	}

	file, err := fileHeader.Open()

	if err != nil {
		RespondBadRequest(ctx, "invalid_file", "Could not read uploaded file")
		return
	}

	defer file.Close()

	// hard cap the read too; Size comes from the client
	data, err := io.ReadAll(io.LimitReader(file, avatar.MaxUploadBytes+1))

	if err != nil {
		RespondBadRequest(ctx, "invalid_file", "Could not read uploaded file")
		return
	}

	normalized, err := avatar.Normalize(data)

	if err != nil {
		RespondBadRequest(ctx, "invalid_image", err.Error())
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	err = h.store.SetAvatar(cctx, u.ID, normalized)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		h.log.Error("avatar: set", "error", err, "user_id", u.ID)
		RespondInternal(ctx, "Could not store avatar")
		return
	}

	h.cache.Delete(avatarCacheKey(u.ID))

	ctx.JSON(http.StatusOK, gin.H{"message": "Avatar uploaded"})
}

// Delete clears the avatar. Clearing an already-empty avatar still
// succeeds.
func (h *AvatarHandler) Delete(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authenticated")
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	err := h.store.ClearAvatar(cctx, u.ID)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		h.log.Error("avatar: clear", "error", err, "user_id", u.ID)
		RespondInternal(ctx, "Could not delete avatar")
		return
	}

	h.cache.Delete(avatarCacheKey(u.ID))

	ctx.JSON(http.StatusOK, gin.H{"message": "Avatar deleted"})
}

// GetByID serves any user's avatar without authentication. Stored
// avatars are always PNG, so the content type is fixed.
func (h *AvatarHandler) GetByID(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondNotFound(ctx, "Avatar not found")
		return
	}

	key := avatarCacheKey(id)

	if v, ok := h.cache.Get(key); ok {
		if img, ok := v.([]byte); ok {
			ctx.Data(http.StatusOK, "image/png", img)
			return
		}
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	img, err := h.store.GetAvatar(cctx, id)

	if err != nil {
		if errors.Is(err, user.ErrAvatarNotFound) {
			RespondNotFound(ctx, "Avatar not found")
			return
		}

		h.log.Error("avatar: get", "error", err, "user_id", id)
		RespondInternal(ctx, "Could not fetch avatar")
		return
	}

	h.cache.Set(key, img)

	ctx.Data(http.StatusOK, "image/png", img)
}
