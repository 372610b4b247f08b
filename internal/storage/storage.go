package storage

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Storage - абстракция над хранилищем медиафайлов.
//
// Ключи объектов - относительные пути вида
// uploads/<user_id>/<client_id>/<uuid>.<ext> для исходных файлов
// и logos/<client_id>/... для логотипов брендов.
type Storage interface {
	Save(ctx context.Context, key string, reader io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// GetURL - постоянный публичный URL объекта
	GetURL(ctx context.Context, key string) (string, error)

	// GetSignedURL - временная подписанная ссылка для приватных объектов.
	// Локальный бэкенд подписи не поддерживает и возвращает обычный URL.
	GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)

	GetSize(ctx context.Context, key string) (int64, error)
}

// Config - параметры бэкенда хранилища
type Config struct {
	Type     string // local | s3 | cloudflare_r2
	BasePath string // корень для local
	BaseURL  string // база публичных URL

	// Для S3-совместимых хранилищ
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string
}

// NewStorage выбирает бэкенд по конфигурации
func NewStorage(cfg Config) (Storage, error) {
	switch cfg.Type {
	case "local":
		return NewLocalStorage(cfg)
	case "s3":
		return NewS3Storage(cfg)
	case "cloudflare_r2":
		return NewCloudflareR2Storage(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
