// Package keystore persists API keys and open key-provisioning requests in
// Redis. Keys are stored under a sha256 hash of the raw credential; the raw
// credential itself is returned to the caller once and never written.
package keystore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/faatca/cue/internal/validate"
)

// ErrNotFound is returned when a key request is absent, expired, or already
// redeemed.
var ErrNotFound = errors.New("key request not found")

const (
	requestTTL = 5 * time.Minute

	requestIDLen = 20
	rawKeyLen    = 32

	alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Key is a provisioned API key record.
// Pattern is nil for an unrestricted key; raw key material never appears
// here, only its sha256 hex in Hash.
type Key struct {
	ID        string    `json:"id"`
	UID       string    `json:"uid"`
	Name      string    `json:"name"`
	Pattern   *string   `json:"pattern"`
	CreatedAt time.Time `json:"created_at"`
	Hash      string    `json:"h"`
}

// KeyRequest is a pending provisioning request awaiting browser approval.
type KeyRequest struct {
	KeyID   string  `json:"key_id"`
	Name    string  `json:"name"`
	Pattern *string `json:"pattern"`
	Hash    string  `json:"h"`
}

// Store is the persistence surface consumed by the authenticator and the
// HTTP handlers.
//
//go:generate mockgen -destination=mock/store_mock.go -package=mock github.com/faatca/cue/internal/keystore Store
type Store interface {
	// StartKeyRequest mints a raw key, records a pending request, and
	// returns the request id together with the raw key.
	StartKeyRequest(ctx context.Context, name string, pattern *string) (requestID, rawKey string, err error)

	// FindKeyRequest returns the pending request, or nil when the id is
	// malformed, unknown, or expired.
	FindKeyRequest(ctx context.Context, requestID string) (*KeyRequest, error)

	// RedeemKeyRequest consumes a pending request exactly once, binding the
	// key to uid under the given name. Returns ErrNotFound when the request
	// is unknown or already redeemed.
	RedeemKeyRequest(ctx context.Context, requestID, uid, name string) error

	// GetKey resolves a raw credential to its key record, or nil when the
	// credential is unknown.
	GetKey(ctx context.Context, rawKey string) (*Key, error)

	// FindUserKeys returns all of a user's keys.
	FindUserKeys(ctx context.Context, uid string) ([]Key, error)

	// RemoveKey deletes a key and all its lookup entries.
	RemoveKey(ctx context.Context, keyID string) error
}

func requestKey(id string) string   { return "key-rq:" + id }
func hashKey(h string) string       { return "keyhash:" + h }
func keyIDKey(id string) string     { return "apikey:" + id }
func userKeysKey(uid string) string { return "user:" + uid + ":apikeys" }

// HashCredential returns the sha256 hex of a raw key, the server-side
// identity of the key.
func HashCredential(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}

func randomToken(n int) string {
	b := make([]byte, n)
	size := big.NewInt(int64(len(alphabet)))
	for i := range b {
		v, err := rand.Int(rand.Reader, size)
		if err != nil {
			panic(err)
		}
		b[i] = alphabet[v.Int64()]
	}
	return string(b)
}

// RedisStore is the Redis-backed Store implementation.
type RedisStore struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewRedisStore creates a RedisStore.
func NewRedisStore(rdb *redis.Client, logger *zap.Logger) *RedisStore {
	return &RedisStore{rdb: rdb, logger: logger}
}

func (s *RedisStore) StartKeyRequest(ctx context.Context, name string, pattern *string) (string, string, error) {
	rawKey := randomToken(rawKeyLen)
	req := KeyRequest{
		KeyID:   uuid.NewString(),
		Name:    name,
		Pattern: pattern,
		Hash:    HashCredential(rawKey),
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", "", err
	}

	// Request ids are short so collisions are possible; SetNX and retry.
	for {
		requestID := randomToken(requestIDLen)
		ok, err := s.rdb.SetNX(ctx, requestKey(requestID), payload, requestTTL).Result()
		if err != nil {
			return "", "", fmt.Errorf("store key request: %w", err)
		}
		if ok {
			return requestID, rawKey, nil
		}
	}
}

func (s *RedisStore) FindKeyRequest(ctx context.Context, requestID string) (*KeyRequest, error) {
	// Cheap shape check before touching Redis; discourages id scanning.
	if len(requestID) < 6 || !isAlnum(requestID) {
		return nil, nil
	}
	payload, err := s.rdb.Get(ctx, requestKey(requestID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load key request: %w", err)
	}
	var req KeyRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode key request: %w", err)
	}
	return &req, nil
}

func (s *RedisStore) RedeemKeyRequest(ctx context.Context, requestID, uid, name string) error {
	if len(requestID) < 6 || !isAlnum(requestID) {
		return ErrNotFound
	}

	// GetDel makes redemption single-shot: a concurrent second redeem sees
	// redis.Nil and fails with ErrNotFound.
	payload, err := s.rdb.GetDel(ctx, requestKey(requestID)).Bytes()
	if err == redis.Nil {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("consume key request: %w", err)
	}
	var req KeyRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("decode key request: %w", err)
	}

	key := Key{
		ID:        req.KeyID,
		UID:       uid,
		Name:      name,
		Pattern:   req.Pattern,
		CreatedAt: time.Now().UTC(),
		Hash:      req.Hash,
	}
	record, err := json.Marshal(key)
	if err != nil {
		return err
	}

	// keyhash:{h} and apikey:{id} are mirror-written in one transaction.
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, hashKey(req.Hash), record, 0)
	pipe.Set(ctx, keyIDKey(req.KeyID), record, 0)
	pipe.SAdd(ctx, userKeysKey(uid), req.KeyID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write api key: %w", err)
	}

	s.logger.Info("api key redeemed",
		zap.String("key_id", req.KeyID),
		zap.String("uid", uid),
	)
	return nil
}

func (s *RedisStore) GetKey(ctx context.Context, rawKey string) (*Key, error) {
	if err := validate.Key(rawKey); err != nil {
		return nil, nil
	}
	payload, err := s.rdb.Get(ctx, hashKey(HashCredential(rawKey))).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load api key: %w", err)
	}
	var key Key
	if err := json.Unmarshal(payload, &key); err != nil {
		return nil, fmt.Errorf("decode api key: %w", err)
	}
	return &key, nil
}

func (s *RedisStore) FindUserKeys(ctx context.Context, uid string) ([]Key, error) {
	ids, err := s.rdb.SMembers(ctx, userKeysKey(uid)).Result()
	if err != nil {
		return nil, fmt.Errorf("list user keys: %w", err)
	}
	if len(ids) == 0 {
		return []Key{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = keyIDKey(id)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch user keys: %w", err)
	}

	out := make([]Key, 0, len(values))
	for _, v := range values {
		// The id set can briefly outlive a deleted key; skip the hole.
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var key Key
		if err := json.Unmarshal([]byte(raw), &key); err != nil {
			s.logger.Warn("skipping malformed api key record", zap.Error(err))
			continue
		}
		out = append(out, key)
	}
	return out, nil
}

func (s *RedisStore) RemoveKey(ctx context.Context, keyID string) error {
	payload, err := s.rdb.Get(ctx, keyIDKey(keyID)).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load api key: %w", err)
	}
	var key Key
	if err := json.Unmarshal(payload, &key); err != nil {
		return fmt.Errorf("decode api key: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, hashKey(key.Hash))
	pipe.Del(ctx, keyIDKey(keyID))
	pipe.SRem(ctx, userKeysKey(key.UID), keyID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	return nil
}

func isAlnum(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return true
}
