package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestClassifyAndCheckSize(t *testing.T) {
	cases := []struct {
		contentType, name string
		size              int64
		wantKind          MediaKind
		wantErr           bool
	}{
		{"image/png", "a.png", 7 * mb, KindImage, false},
		{"image/png", "a.png", 9 * mb, KindImage, true},
		{"audio/mpeg", "a.mp3", 15 * mb, KindAudio, false},
		{"video/mp4", "a.mp4", 49 * mb, KindVideo, false},
		{"application/octet-stream", "rules.docx", 11 * mb, KindDocument, true},
	}
	for _, tc := range cases {
		kind, err := Classify(tc.contentType, tc.name)
		if err != nil {
			t.Fatalf("Classify(%q, %q): %v", tc.contentType, tc.name, err)
		}
		if kind != tc.wantKind {
			t.Errorf("Classify(%q) = %s, want %s", tc.contentType, kind, tc.wantKind)
		}
		if err := CheckSize(kind, tc.size); (err != nil) != tc.wantErr {
			t.Errorf("CheckSize(%s, %d) err = %v, wantErr %v", kind, tc.size, err, tc.wantErr)
		}
	}

	if _, err := Classify("application/zip", "x.zip"); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("zip err = %v, want ErrUnsupportedType", err)
	}
}

func TestNewKey(t *testing.T) {
	key := NewKey("audio", "Mi Canción Favorita.MP3")
	if !strings.HasPrefix(key, "audio/") || !strings.HasSuffix(key, "-mi-cancion-favorita.mp3") {
		t.Errorf("NewKey = %q", key)
	}
}

func TestLocalStorage(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStorage(dir, "http://host/uploads/")
	ctx := context.Background()

	url, err := s.Save(ctx, "audio/x.mp3", strings.NewReader("beep"), 4, "audio/mpeg")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if url != "http://host/uploads/audio/x.mp3" {
		t.Errorf("url = %q", url)
	}
	data, err := os.ReadFile(filepath.Join(dir, "audio", "x.mp3"))
	if err != nil || string(data) != "beep" {
		t.Fatalf("stored file = %q, %v", data, err)
	}

	if err := s.Delete(ctx, "audio/x.mp3"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "audio/x.mp3"); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}
