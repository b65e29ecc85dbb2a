// Package repository содержит хранилища пар ключ-значение для сохранения клиентской сессии.
package repository

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrNotFound возвращается, если ключ отсутствует в хранилище.
	ErrNotFound = errors.New("key not found")
	// ErrNotMigrated возвращается, если схема хранилища не создана.
	ErrNotMigrated = errors.New("storage schema is not migrated")
	// ErrUnavailable возвращается при потере соединения с хранилищем.
	ErrUnavailable = errors.New("storage unavailable")
)

// Storage описывает хранилище строковых значений по ключу.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Delete удаляет все указанные ключи одной операцией.
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// MemoryStorage хранит значения в памяти процесса.
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStorage создаёт пустое хранилище в памяти.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

// Get возвращает значение по ключу.
func (m *MemoryStorage) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set сохраняет значение по ключу.
func (m *MemoryStorage) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value
	return nil
}

// Delete удаляет ключи.
func (m *MemoryStorage) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

// Close ничего не делает.
func (m *MemoryStorage) Close() error { return nil }
