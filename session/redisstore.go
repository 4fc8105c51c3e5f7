package session

import (
	"context"
	"encoding/json"

	"github.com/lora-edge/macd"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisStore persists records in Redis, one key per (devEUI, kind),
// grounded on the backend client's `RedisClient redis.UniversalClient`
// field: this is the shape used for the host-side simulation harness,
// where many simulated end-devices share one process and a file-per-device
// store would not scale.
type RedisStore struct {
	Client redis.UniversalClient
	// KeyPrefix namespaces keys, e.g. "macd:" so multiple test runs or
	// simulated fleets can share a Redis instance without collision.
	KeyPrefix string
}

// NewRedisStore wraps an existing redis.UniversalClient.
func NewRedisStore(client redis.UniversalClient, keyPrefix string) *RedisStore {
	return &RedisStore{Client: client, KeyPrefix: keyPrefix}
}

func (s *RedisStore) key(devEUI lorawan.EUI64, kind string) string {
	return s.KeyPrefix + "dev:" + devEUI.String() + ":" + kind
}

func (s *RedisStore) load(ctx context.Context, key string, v interface{}) error {
	b, err := s.Client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrNotFound
		}
		return errors.Wrap(err, "session: redis get")
	}
	return json.Unmarshal(b, v)
}

func (s *RedisStore) persist(ctx context.Context, key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "session: marshal")
	}
	if err := s.Client.Set(ctx, key, b, 0).Err(); err != nil {
		return errors.Wrap(err, "session: redis set")
	}
	return nil
}

// LoadIdentity implements Store.
func (s *RedisStore) LoadIdentity(ctx context.Context, devEUI lorawan.EUI64) (*Identity, error) {
	var id Identity
	if err := s.load(ctx, s.key(devEUI, "identity"), &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// PersistIdentity implements Store.
func (s *RedisStore) PersistIdentity(ctx context.Context, id Identity) error {
	return s.persist(ctx, s.key(id.DevEUI, "identity"), id)
}

// LoadSession implements Store.
func (s *RedisStore) LoadSession(ctx context.Context, devEUI lorawan.EUI64) (*Session, error) {
	var sess Session
	if err := s.load(ctx, s.key(devEUI, "session"), &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// PersistSession implements Store.
func (s *RedisStore) PersistSession(ctx context.Context, devEUI lorawan.EUI64, sess Session) error {
	logrus.WithField("dev_eui", devEUI).Debug("session: persisting session state to redis")
	return s.persist(ctx, s.key(devEUI, "session"), sess)
}

// ClearSession implements Store.
func (s *RedisStore) ClearSession(ctx context.Context, devEUI lorawan.EUI64) error {
	if err := s.Client.Del(ctx, s.key(devEUI, "session")).Err(); err != nil {
		return errors.Wrap(err, "session: redis del")
	}
	return nil
}

// LoadDevNonce implements Store.
func (s *RedisStore) LoadDevNonce(ctx context.Context, devEUI lorawan.EUI64) (*DevNonceRecord, error) {
	var r DevNonceRecord
	if err := s.load(ctx, s.key(devEUI, "devnonce"), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// PersistDevNonce implements Store.
func (s *RedisStore) PersistDevNonce(ctx context.Context, devEUI lorawan.EUI64, r DevNonceRecord) error {
	return s.persist(ctx, s.key(devEUI, "devnonce"), r)
}
