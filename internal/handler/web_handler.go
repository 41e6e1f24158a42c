package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/faatca/cue/internal/auth"
	"github.com/faatca/cue/internal/keystore"
	"github.com/faatca/cue/internal/validate"
)

// WebHandler serves the session-authenticated key-management surface the
// browser UI talks to: listing keys, approving key requests, revocation.
// Sign-in itself (OIDC) happens upstream and results in the session cookie
// this surface requires.
type WebHandler struct {
	store  keystore.Store
	logger *zap.Logger
}

// NewWebHandler constructs a WebHandler.
func NewWebHandler(store keystore.Store, logger *zap.Logger) *WebHandler {
	return &WebHandler{store: store, logger: logger}
}

// Register mounts the web routes on g. The caller attaches the session and
// CSRF middleware to the group.
func (h *WebHandler) Register(g *echo.Group) {
	g.GET("/home", h.Home)
	g.GET("/keyrequest/:id", h.GetKeyRequest)
	g.POST("/keyrequest/:id/accept", h.AcceptKeyRequest)
	g.DELETE("/keys/:id", h.DeleteKey)
}

type keyResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Pattern   *string   `json:"pattern"`
	CreatedAt time.Time `json:"created_at"`
}

// Home lists the session user's keys. Key hashes and raw material are never
// part of the response.
func (h *WebHandler) Home(c echo.Context) error {
	uid, ok := auth.SessionUID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
	}

	keys, err := h.store.FindUserKeys(c.Request().Context(), uid)
	if err != nil {
		h.logger.Error("list keys failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Failed to list keys"})
	}

	resp := make([]keyResponse, 0, len(keys))
	for _, k := range keys {
		resp = append(resp, keyResponse{
			ID:        k.ID,
			Name:      k.Name,
			Pattern:   k.Pattern,
			CreatedAt: k.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"apikeys": resp})
}

// GetKeyRequest returns the pending request's details for the confirmation
// page.
func (h *WebHandler) GetKeyRequest(c echo.Context) error {
	if _, ok := auth.SessionUID(c); !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
	}

	req, err := h.store.FindKeyRequest(c.Request().Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("key request lookup failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal error"})
	}
	if req == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "Invalid request"})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"id":      c.Param("id"),
		"name":    req.Name,
		"pattern": req.Pattern,
	})
}

// AcceptKeyRequest redeems a pending key request for the session user. The
// form may override the key's label; an empty label falls back to a
// timestamp.
func (h *WebHandler) AcceptKeyRequest(c echo.Context) error {
	uid, ok := auth.SessionUID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
	}

	name := c.FormValue("name")
	if name == "" {
		name = time.Now().UTC().Format(time.RFC3339)
	}
	if err := validate.KeyName(name); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": err.Error()})
	}

	err := h.store.RedeemKeyRequest(c.Request().Context(), c.Param("id"), uid, name)
	if errors.Is(err, keystore.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "Invalid request"})
	}
	if err != nil {
		h.logger.Error("key redemption failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Failed to approve key"})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Key approved"})
}

// DeleteKey revokes one of the session user's keys.
func (h *WebHandler) DeleteKey(c echo.Context) error {
	uid, ok := auth.SessionUID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
	}

	keyID := c.Param("id")
	if err := validate.KeyID(keyID); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": err.Error()})
	}

	// Only the owner may revoke; check membership before deleting.
	keys, err := h.store.FindUserKeys(c.Request().Context(), uid)
	if err != nil {
		h.logger.Error("list keys failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal error"})
	}
	owned := false
	for _, k := range keys {
		if k.ID == keyID {
			owned = true
			break
		}
	}
	if !owned {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "Invalid key"})
	}

	if err := h.store.RemoveKey(c.Request().Context(), keyID); err != nil {
		h.logger.Error("key removal failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Failed to remove key"})
	}
	return c.NoContent(http.StatusNoContent)
}
