package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const defaultRedisPrefix = "storefront:session"

// RedisStorage хранит значения сессии в ключах Redis с общим префиксом.
type RedisStorage struct {
	client *redis.Client
	prefix string
}

// NewRedisStorage подключается к Redis по адресу addr.
func NewRedisStorage(ctx context.Context, addr, prefix string) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisStorageWithClient(client, prefix), nil
}

// NewRedisStorageWithClient оборачивает уже подключённый клиент.
func NewRedisStorageWithClient(client *redis.Client, prefix string) *RedisStorage {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStorage{client: client, prefix: prefix}
}

func (r *RedisStorage) key(k string) string {
	return r.prefix + ":" + k
}

// Get возвращает значение по ключу.
func (r *RedisStorage) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("redis get: %w", err)
	}
	return v, nil
}

// Set сохраняет значение по ключу без срока жизни.
func (r *RedisStorage) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete удаляет ключи одной командой DEL.
func (r *RedisStorage) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, r.key(k))
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis.
func (r *RedisStorage) Close() error {
	return r.client.Close()
}
