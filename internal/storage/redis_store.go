package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisOptions содержит настройки подключения к Redis
type RedisOptions struct {
	Addr      string        // Адрес Redis сервера
	Password  string        // Пароль (пустой если не требуется)
	DB        int           // Номер базы данных
	KeyPrefix string        // Префикс для ключей
	TTL       time.Duration // Время жизни записей, 0 без ограничения
}

// DefaultRedisOptions возвращает настройки по умолчанию
func DefaultRedisOptions() RedisOptions {
	return RedisOptions{
		Addr:      "localhost:6379",
		KeyPrefix: "blockverse:",
	}
}

// RedisBackend хранит колонки в Redis
type RedisBackend struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisBackend подключается к Redis и проверяет соединение
func NewRedisBackend(ctx context.Context, opts RedisOptions) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisBackend{client: client, keyPrefix: opts.KeyPrefix, ttl: opts.TTL}, nil
}

// OpenRedisStore открывает хранилище колонок поверх Redis
func OpenRedisStore(ctx context.Context, opts RedisOptions, workers int) (*ChunkStore, error) {
	backend, err := NewRedisBackend(ctx, opts)
	if err != nil {
		return nil, err
	}
	store, err := NewChunkStore(backend, workers)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return store, nil
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, r.keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, true, nil
}

func (r *RedisBackend) Put(ctx context.Context, key string, data []byte) error {
	if err := r.client.Set(ctx, r.keyPrefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.keyPrefix+key).Err()
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}
