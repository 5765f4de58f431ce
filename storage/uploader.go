package storage

import (
	"context"
	"io"
)

// UploadResult — итог загрузки файла в объектное хранилище.
type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// FileUploader абстрагирует объектное хранилище логотипов команд.
type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}
