// Package handler contains the Echo handlers for the cue server: the /api
// surface used by CLI clients (key provisioning, publish, listen) and the
// session-authenticated web surface for key management.
package handler

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"sort"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/faatca/cue/internal/auth"
	"github.com/faatca/cue/internal/bus"
	"github.com/faatca/cue/internal/cue"
	"github.com/faatca/cue/internal/keystore"
	"github.com/faatca/cue/internal/registry"
	"github.com/faatca/cue/internal/validate"
)

// APIHandler serves the /api surface.
type APIHandler struct {
	auth     *auth.Authenticator
	store    keystore.Store
	pub      bus.Publisher
	registry *registry.Registry
	logger   *zap.Logger
}

// NewAPIHandler constructs an APIHandler.
func NewAPIHandler(a *auth.Authenticator, store keystore.Store, pub bus.Publisher, reg *registry.Registry, logger *zap.Logger) *APIHandler {
	return &APIHandler{auth: a, store: store, pub: pub, registry: reg, logger: logger}
}

// Register mounts the api routes on e.
func (h *APIHandler) Register(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("", h.Home)
	g.GET("/", h.Home)
	g.POST("/auth", h.PostAuth)
	g.GET("/hello", h.GetHello)
	g.POST("/cues", h.PostCues)
	g.POST("/cues/:id", h.PostCue)
	g.GET("/listen", h.Listen)
}

// Home is the unauthenticated api banner.
func (h *APIHandler) Home(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"message": "This is the cue api"})
}

type postAuthRequest struct {
	Name    string  `json:"name"`
	Pattern *string `json:"pattern"`
}

// PostAuth starts a key-provisioning request. It is unauthenticated: the
// returned key is useless until a signed-in user redeems the request id.
func (h *APIHandler) PostAuth(c echo.Context) error {
	var req postAuthRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
	}
	if err := validate.KeyName(req.Name); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": err.Error()})
	}
	// An empty pattern means unrestricted; store it as absent so it never
	// masquerades as a glob that matches nothing.
	if req.Pattern != nil && *req.Pattern == "" {
		req.Pattern = nil
	}
	if req.Pattern != nil {
		if err := validate.CuePattern(*req.Pattern); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"message": err.Error()})
		}
	}

	requestID, rawKey, err := h.store.StartKeyRequest(c.Request().Context(), req.Name, req.Pattern)
	if err != nil {
		h.logger.Error("key request failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Failed to create key request"})
	}
	return c.JSON(http.StatusOK, map[string]string{"id": requestID, "key": rawKey})
}

// GetHello reports whether the presented key resolves to a user. The CLI
// polls it while waiting for its key request to be approved.
func (h *APIHandler) GetHello(c echo.Context) error {
	key, err := h.auth.ResolveHeader(c.Request().Context(), c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		h.logger.Error("auth lookup failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal error"})
	}
	if key == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Hello!"})
}

// PostCues publishes a cue under one or more ?name= values.
func (h *APIHandler) PostCues(c echo.Context) error {
	return h.publish(c, dedupe(c.QueryParams()["name"]))
}

// PostCue is the convenience path-parametrized publish: the path segment is
// the single cue name.
func (h *APIHandler) PostCue(c echo.Context) error {
	return h.publish(c, []string{c.Param("id")})
}

func (h *APIHandler) publish(c echo.Context, names []string) error {
	ctx := c.Request().Context()

	key, err := h.auth.ResolveHeader(ctx, c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		h.logger.Error("auth lookup failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal error"})
	}
	if key == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
	}

	for _, n := range names {
		if err := validate.CueName(n); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"message": err.Error()})
		}
	}
	if len(names) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "No cue names requested"})
	}

	// Producer-side access check: a scoped key must match every requested
	// name or the publish is refused outright.
	if key.Pattern != nil {
		var denied []string
		for _, n := range names {
			if !cue.Match(n, *key.Pattern) {
				denied = append(denied, n)
			}
		}
		if len(denied) > 0 {
			return c.JSON(http.StatusUnauthorized, map[string]any{
				"message": "Key has no access to cues",
				"names":   denied,
			})
		}
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, cue.MaxContentBytes+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Failed to read content"})
	}
	if len(body) > cue.MaxContentBytes {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Content is too long"})
	}

	var content *string
	if len(body) > 0 {
		encoded := base64.StdEncoding.EncodeToString(body)
		content = &encoded
	}

	sort.Strings(names)
	payload := cue.Payload{
		ID:      uuid.NewString(),
		UID:     key.UID,
		Names:   names,
		Content: content,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := h.pub.Publish(ctx, data); err != nil {
		h.logger.Error("cue publish failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Failed to post cue"})
	}

	h.logger.Debug("cue posted",
		zap.String("id", payload.ID),
		zap.Strings("names", payload.Names),
	)
	return c.JSON(http.StatusOK, map[string]string{"message": "Posted"})
}

// dedupe collapses repeated names, keeping first-occurrence order so
// validation diagnostics are deterministic.
func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
