package quota

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/ua-proxy-go/internal/config"
	"github.com/ua-proxy-go/internal/models"
)

// Store persists the search quota counter. Load returns nil state when
// nothing has been persisted yet.
type Store interface {
	Load() (*models.QuotaState, error)
	Save(state *models.QuotaState) error
}

// persistedState is the on-disk document. The counter is namespaced under
// the API it guards so the file stays extensible.
type persistedState struct {
	GoogleSearch models.QuotaState `json:"google_search"`
}

// NewStore builds the store selected by configuration.
func NewStore(cfg *config.QuotaConfig, logger *logrus.Logger) (Store, error) {
	switch cfg.Store {
	case "file":
		return &FileStore{path: cfg.FilePath}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping failed: %w", err)
		}
		logger.WithField("addr", cfg.Redis.Addr).Info("Quota store using Redis")
		return &RedisStore{client: client, key: "quota:google_search"}, nil
	default:
		return nil, fmt.Errorf("unsupported quota store: %s", cfg.Store)
	}
}

// FileStore rewrites a single JSON document on every change.
type FileStore struct {
	path string
}

func (s *FileStore) Load() (*models.QuotaState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var doc persistedState
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("malformed quota file %s: %w", s.path, err)
	}
	state := doc.GoogleSearch
	return &state, nil
}

func (s *FileStore) Save(state *models.QuotaState) error {
	doc := persistedState{GoogleSearch: *state}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}

// RedisStore keeps the same JSON document under a single key.
type RedisStore struct {
	client *redis.Client
	key    string
}

func (s *RedisStore) Load() (*models.QuotaState, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := s.client.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var doc persistedState
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("malformed quota value at %s: %w", s.key, err)
	}
	state := doc.GoogleSearch
	return &state, nil
}

func (s *RedisStore) Save(state *models.QuotaState) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := json.Marshal(persistedState{GoogleSearch: *state})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, data, 0).Err()
}
