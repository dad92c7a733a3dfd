package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/leadflow-api/internal/models"
)

// RedisLeadRepository persists the whole collection as one JSON document under a single key.
type RedisLeadRepository struct {
	client *redis.Client
	key    string
}

// NewRedisLeadRepository constructs a key-value backed lead repository.
func NewRedisLeadRepository(client *redis.Client, key string) *RedisLeadRepository {
	if key == "" {
		key = "leads"
	}
	return &RedisLeadRepository{client: client, key: key}
}

// Load decodes the stored collection. A missing key yields an empty collection.
func (r *RedisLeadRepository) Load(ctx context.Context) ([]models.Lead, error) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []models.Lead{}, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", r.key, err)
	}

	var leads []models.Lead
	if err := json.Unmarshal(raw, &leads); err != nil {
		return nil, fmt.Errorf("decode leads from %s: %w", r.key, err)
	}
	if leads == nil {
		leads = []models.Lead{}
	}
	return leads, nil
}

// Save overwrites the stored collection without expiry.
func (r *RedisLeadRepository) Save(ctx context.Context, leads []models.Lead) error {
	if leads == nil {
		leads = []models.Lead{}
	}
	payload, err := json.Marshal(leads)
	if err != nil {
		return fmt.Errorf("encode leads: %w", err)
	}
	if err := r.client.Set(ctx, r.key, payload, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}
