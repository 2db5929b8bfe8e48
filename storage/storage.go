package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

var ErrUnsupportedType = errors.New("unsupported file format")

// Storage はアップロードされたファイルの保存先です。
type Storage interface {
	// Save stores the object and returns its public URL.
	Save(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

const mb = 1024 * 1024

// MediaKind は保存するファイルの種類です。
type MediaKind string

const (
	KindImage    MediaKind = "image"
	KindAudio    MediaKind = "audio"
	KindVideo    MediaKind = "video"
	KindDocument MediaKind = "document"
)

var limits = map[MediaKind]int64{
	KindImage:    8 * mb,
	KindAudio:    15 * mb,
	KindVideo:    50 * mb,
	KindDocument: 10 * mb,
}

var documentExts = []string{".pdf", ".txt", ".doc", ".docx"}

// Classify returns the media kind of an upload from its MIME type and name.
func Classify(contentType, filename string) (MediaKind, error) {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return KindImage, nil
	case strings.HasPrefix(contentType, "audio/"):
		return KindAudio, nil
	case strings.HasPrefix(contentType, "video/"):
		return KindVideo, nil
	case contentType == "application/pdf", contentType == "text/plain",
		contentType == "application/msword",
		contentType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return KindDocument, nil
	}
	ext := strings.ToLower(path.Ext(filename))
	for _, e := range documentExts {
		if ext == e {
			return KindDocument, nil
		}
	}
	return "", ErrUnsupportedType
}

// CheckSize は種類ごとのサイズ上限を確認します。
func CheckSize(kind MediaKind, size int64) error {
	limit, ok := limits[kind]
	if !ok {
		return ErrUnsupportedType
	}
	if size > limit {
		return fmt.Errorf("%s exceeds the %dMB limit", kind, limit/mb)
	}
	return nil
}

// NewKey builds a unique object key such as "audio/4f0c...-my-song.mp3".
func NewKey(prefix, originalName string) string {
	ext := strings.ToLower(path.Ext(originalName))
	base := slug.Make(strings.TrimSuffix(path.Base(originalName), path.Ext(originalName)))
	if base == "" {
		base = "file"
	}
	return fmt.Sprintf("%s/%s-%s%s", prefix, uuid.New().String(), base, ext)
}
