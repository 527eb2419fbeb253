package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenDenylist records revoked token ids until the tokens would have expired
// on their own.
type TokenDenylist interface {
	Revoke(ctx context.Context, tokenId string, expiry time.Time) error

	IsRevoked(ctx context.Context, tokenId string) (bool, error)
}

type RedisDenylist struct {
	client *redis.Client
	prefix string
}

func NewRedisDenylist(redisUrl string) (*RedisDenylist, error) {
	opts, err := redis.ParseURL(redisUrl)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisDenylist{client: client, prefix: "revoked_jwt:"}, nil
}

func (d *RedisDenylist) key(tokenId string) string {
	return d.prefix + tokenId
}

func (d *RedisDenylist) Revoke(ctx context.Context, tokenId string, expiry time.Time) error {
	ttl := time.Until(expiry)
	if ttl <= 0 {
		// Already expired, the verifier rejects it anyway.
		return nil
	}

	if err := d.client.Set(ctx, d.key(tokenId), 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (d *RedisDenylist) IsRevoked(ctx context.Context, tokenId string) (bool, error) {
	err := d.client.Get(ctx, d.key(tokenId)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup revoked token: %w", err)
	}
	return true, nil
}

func (d *RedisDenylist) Close() error {
	return d.client.Close()
}

// MemoryDenylist is used when no redis url is configured. Revocations are lost
// on restart and are not shared between replicas.
type MemoryDenylist struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{revoked: make(map[string]time.Time)}
}

func (d *MemoryDenylist) Revoke(ctx context.Context, tokenId string, expiry time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for id, exp := range d.revoked {
		if exp.Before(now) {
			delete(d.revoked, id)
		}
	}

	if expiry.After(now) {
		d.revoked[tokenId] = expiry
	}
	return nil
}

func (d *MemoryDenylist) IsRevoked(ctx context.Context, tokenId string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	exp, ok := d.revoked[tokenId]
	return ok && exp.After(time.Now()), nil
}
