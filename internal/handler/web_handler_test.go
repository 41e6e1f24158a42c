package handler_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/faatca/cue/internal/handler"
	"github.com/faatca/cue/internal/keystore"
	"github.com/faatca/cue/internal/keystore/mock"
)

const sessionUIDKey = "session_uid"

func setupWebHandler(t *testing.T) (*handler.WebHandler, *mock.MockStore) {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := mock.NewMockStore(ctrl)
	return handler.NewWebHandler(store, zap.NewNop()), store
}

func webContext(e *echo.Echo, req *http.Request, rec *httptest.ResponseRecorder, uid string) echo.Context {
	c := e.NewContext(req, rec)
	c.Set(sessionUIDKey, uid)
	return c
}

func TestHomeListsKeys(t *testing.T) {
	h, store := setupWebHandler(t)
	pattern := "test.*"
	store.EXPECT().FindUserKeys(gomock.Any(), "alice").Return([]keystore.Key{
		{ID: "k1", UID: "alice", Name: "laptop", CreatedAt: time.Now().UTC(), Hash: "deadbeef"},
		{ID: "k2", UID: "alice", Name: "ci", Pattern: &pattern, CreatedAt: time.Now().UTC(), Hash: "cafebabe"},
	}, nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/home", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, h.Home(webContext(e, req, rec, "alice")))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "laptop")
	assert.Contains(t, rec.Body.String(), "test.*")
	// Key hashes never leave the server.
	assert.NotContains(t, rec.Body.String(), "deadbeef")
	assert.NotContains(t, rec.Body.String(), "cafebabe")
}

func TestGetKeyRequest(t *testing.T) {
	h, store := setupWebHandler(t)
	store.EXPECT().FindKeyRequest(gomock.Any(), "Ab3xFq9rT2mW8kLp0sVd").
		Return(&keystore.KeyRequest{KeyID: "k1", Name: "laptop", Hash: "h"}, nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/keyrequest/Ab3xFq9rT2mW8kLp0sVd", nil)
	rec := httptest.NewRecorder()
	c := webContext(e, req, rec, "alice")
	c.SetParamNames("id")
	c.SetParamValues("Ab3xFq9rT2mW8kLp0sVd")

	require.NoError(t, h.GetKeyRequest(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "laptop")
}

func TestGetKeyRequestUnknown(t *testing.T) {
	h, store := setupWebHandler(t)
	store.EXPECT().FindKeyRequest(gomock.Any(), "expiredexpired").Return(nil, nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/keyrequest/expiredexpired", nil)
	rec := httptest.NewRecorder()
	c := webContext(e, req, rec, "alice")
	c.SetParamNames("id")
	c.SetParamValues("expiredexpired")

	require.NoError(t, h.GetKeyRequest(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid request")
}

func acceptRequest(t *testing.T, h *handler.WebHandler, requestID, name, uid string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{}
	if name != "" {
		form.Set("name", name)
	}
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/keyrequest/"+requestID+"/accept", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	c := webContext(e, req, rec, uid)
	c.SetParamNames("id")
	c.SetParamValues(requestID)
	require.NoError(t, h.AcceptKeyRequest(c))
	return rec
}

func TestAcceptKeyRequest(t *testing.T) {
	h, store := setupWebHandler(t)
	store.EXPECT().
		RedeemKeyRequest(gomock.Any(), "Ab3xFq9rT2mW8kLp0sVd", "alice", "laptop").
		Return(nil)

	rec := acceptRequest(t, h, "Ab3xFq9rT2mW8kLp0sVd", "laptop", "alice")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Key approved")
}

func TestAcceptKeyRequestSecondRedemptionFails(t *testing.T) {
	h, store := setupWebHandler(t)
	store.EXPECT().
		RedeemKeyRequest(gomock.Any(), "Ab3xFq9rT2mW8kLp0sVd", "alice", "laptop").
		Return(keystore.ErrNotFound)

	rec := acceptRequest(t, h, "Ab3xFq9rT2mW8kLp0sVd", "laptop", "alice")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid request")
}

func TestAcceptKeyRequestEmptyNameDefaults(t *testing.T) {
	h, store := setupWebHandler(t)
	store.EXPECT().
		RedeemKeyRequest(gomock.Any(), "Ab3xFq9rT2mW8kLp0sVd", "alice", gomock.Not(gomock.Eq(""))).
		Return(nil)

	rec := acceptRequest(t, h, "Ab3xFq9rT2mW8kLp0sVd", "", "alice")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeleteKey(t *testing.T) {
	h, store := setupWebHandler(t)
	store.EXPECT().FindUserKeys(gomock.Any(), "alice").Return([]keystore.Key{
		{ID: "550e8400-e29b-41d4-a716-446655440000", UID: "alice", Name: "laptop"},
	}, nil)
	store.EXPECT().RemoveKey(gomock.Any(), "550e8400-e29b-41d4-a716-446655440000").Return(nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodDelete, "/keys/550e8400-e29b-41d4-a716-446655440000", nil)
	rec := httptest.NewRecorder()
	c := webContext(e, req, rec, "alice")
	c.SetParamNames("id")
	c.SetParamValues("550e8400-e29b-41d4-a716-446655440000")

	require.NoError(t, h.DeleteKey(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestDeleteKeyNotOwned(t *testing.T) {
	h, store := setupWebHandler(t)
	store.EXPECT().FindUserKeys(gomock.Any(), "mallory").Return([]keystore.Key{}, nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodDelete, "/keys/550e8400-e29b-41d4-a716-446655440000", nil)
	rec := httptest.NewRecorder()
	c := webContext(e, req, rec, "mallory")
	c.SetParamNames("id")
	c.SetParamValues("550e8400-e29b-41d4-a716-446655440000")

	require.NoError(t, h.DeleteKey(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteKeyBadID(t *testing.T) {
	h, _ := setupWebHandler(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodDelete, "/keys/zzz", nil)
	rec := httptest.NewRecorder()
	c := webContext(e, req, rec, "alice")
	c.SetParamNames("id")
	c.SetParamValues("zzz")

	require.NoError(t, h.DeleteKey(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
