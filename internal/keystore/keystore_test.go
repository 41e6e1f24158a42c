package keystore_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/faatca/cue/internal/keystore"
)

func newRedisStore(t *testing.T) (*keystore.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return keystore.NewRedisStore(client, zap.NewNop()), mr
}

func TestHashCredential(t *testing.T) {
	h := keystore.HashCredential("sekret")
	assert.Len(t, h, 64)
	assert.Equal(t, h, keystore.HashCredential("sekret"))
	assert.NotEqual(t, h, keystore.HashCredential("sekreT"))
}

func TestKeyRecordPatternNullability(t *testing.T) {
	// nil pattern (unrestricted) and empty-string pattern must survive a
	// round trip as distinct values.
	unrestricted := keystore.Key{ID: "k1", UID: "alice", Name: "laptop"}
	data, err := json.Marshal(unrestricted)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"pattern":null`)

	scoped := keystore.Key{ID: "k2", UID: "alice", Name: "ci"}
	pattern := "test.*"
	scoped.Pattern = &pattern
	data, err = json.Marshal(scoped)
	require.NoError(t, err)

	var round keystore.Key
	require.NoError(t, json.Unmarshal(data, &round))
	require.NotNil(t, round.Pattern)
	assert.Equal(t, "test.*", *round.Pattern)
}

func TestKeyRequestLifecycle(t *testing.T) {
	s, _ := newRedisStore(t)
	ctx := context.Background()

	pattern := "test.*"
	requestID, rawKey, err := s.StartKeyRequest(ctx, "laptop", &pattern)
	require.NoError(t, err)
	assert.Len(t, requestID, 20)
	assert.Len(t, rawKey, 32)

	req, err := s.FindKeyRequest(ctx, requestID)
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, "laptop", req.Name)
	require.NotNil(t, req.Pattern)
	assert.Equal(t, "test.*", *req.Pattern)
	assert.Equal(t, keystore.HashCredential(rawKey), req.Hash)

	// The raw key resolves to nothing until the request is redeemed.
	key, err := s.GetKey(ctx, rawKey)
	require.NoError(t, err)
	assert.Nil(t, key)

	require.NoError(t, s.RedeemKeyRequest(ctx, requestID, "alice", "work laptop"))

	key, err = s.GetKey(ctx, rawKey)
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.Equal(t, "alice", key.UID)
	// The redeem-time name overrides the one captured at request time.
	assert.Equal(t, "work laptop", key.Name)
	require.NotNil(t, key.Pattern)
	assert.Equal(t, "test.*", *key.Pattern)
}

func TestRedeemKeyRequestIsSingleShot(t *testing.T) {
	s, _ := newRedisStore(t)
	ctx := context.Background()

	requestID, rawKey, err := s.StartKeyRequest(ctx, "laptop", nil)
	require.NoError(t, err)
	require.NoError(t, s.RedeemKeyRequest(ctx, requestID, "alice", "laptop"))

	// A second redemption must fail, and the request must be gone.
	assert.ErrorIs(t, s.RedeemKeyRequest(ctx, requestID, "mallory", "stolen"), keystore.ErrNotFound)
	req, err := s.FindKeyRequest(ctx, requestID)
	require.NoError(t, err)
	assert.Nil(t, req)

	key, err := s.GetKey(ctx, rawKey)
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.Equal(t, "alice", key.UID)
}

func TestKeyRequestExpires(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	requestID, _, err := s.StartKeyRequest(ctx, "laptop", nil)
	require.NoError(t, err)

	mr.FastForward(6 * time.Minute)

	req, err := s.FindKeyRequest(ctx, requestID)
	require.NoError(t, err)
	assert.Nil(t, req)
	assert.ErrorIs(t, s.RedeemKeyRequest(ctx, requestID, "alice", "laptop"), keystore.ErrNotFound)
}

func TestRemoveKeyDeletesMirrors(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	requestID, rawKey, err := s.StartKeyRequest(ctx, "laptop", nil)
	require.NoError(t, err)
	require.NoError(t, s.RedeemKeyRequest(ctx, requestID, "alice", "laptop"))

	keys, err := s.FindUserKeys(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	keyID := keys[0].ID

	require.NoError(t, s.RemoveKey(ctx, keyID))

	key, err := s.GetKey(ctx, rawKey)
	require.NoError(t, err)
	assert.Nil(t, key)

	keys, err = s.FindUserKeys(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, keys)

	// Both lookup entries and the user-set member are gone.
	assert.False(t, mr.Exists("keyhash:"+keystore.HashCredential(rawKey)))
	assert.False(t, mr.Exists("apikey:"+keyID))
}

// Malformed identifiers are rejected by shape checks before any Redis
// round trip, so a nil client never gets touched.

func TestFindKeyRequestRejectsMalformedID(t *testing.T) {
	s := keystore.NewRedisStore(nil, zap.NewNop())

	for _, id := range []string{"", "abc", "ab!def", "has space0"} {
		req, err := s.FindKeyRequest(context.Background(), id)
		assert.NoError(t, err, "id %q", id)
		assert.Nil(t, req, "id %q", id)
	}
}

func TestRedeemKeyRequestRejectsMalformedID(t *testing.T) {
	s := keystore.NewRedisStore(nil, zap.NewNop())

	err := s.RedeemKeyRequest(context.Background(), "nope!", "alice", "laptop")
	assert.ErrorIs(t, err, keystore.ErrNotFound)
}

func TestGetKeyRejectsMalformedCredential(t *testing.T) {
	s := keystore.NewRedisStore(nil, zap.NewNop())

	key, err := s.GetKey(context.Background(), "bad key!")
	assert.NoError(t, err)
	assert.Nil(t, key)
}
