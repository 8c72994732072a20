package speech

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lukechampine.com/blake3"
)

// Fingerprint returns the hex blake3-256 digest of an audio payload.
func Fingerprint(audio []byte) string {
	sum := blake3.Sum256(audio)
	return hex.EncodeToString(sum[:])
}

type StoredAudio struct {
	Path string
	Hash string
	Size int64
}

// AudioStore keeps recordings and synthesized prompts on local disk, content-addressed
// by their fingerprint so re-uploads of the same take share one file.
type AudioStore struct {
	dir string
}

func NewAudioStore(dir string) (*AudioStore, error) {
	if dir == "" {
		dir = "./data/audio"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("audio store: create dir: %w", err)
	}
	return &AudioStore{dir: dir}, nil
}

func (s *AudioStore) Save(ctx context.Context, kind string, audio []byte, ext string) (*StoredAudio, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("audio store: empty payload")
	}

	hash := Fingerprint(audio)
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "bin"
	}

	sub := filepath.Join(s.dir, kind, hash[:2])
	if err := os.MkdirAll(sub, 0o755); err != nil {
		return nil, fmt.Errorf("audio store: create dir: %w", err)
	}
	path := filepath.Join(sub, hash+"."+ext)

	if _, err := os.Stat(path); err == nil {
		return &StoredAudio{Path: path, Hash: hash, Size: int64(len(audio))}, nil
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, audio, 0o644); err != nil {
		return nil, fmt.Errorf("audio store: write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("audio store: rename: %w", err)
	}
	return &StoredAudio{Path: path, Hash: hash, Size: int64(len(audio))}, nil
}

func (s *AudioStore) Load(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil, fmt.Errorf("audio store: path %q outside store", path)
	}
	return os.ReadFile(path)
}

// ContentType guesses a MIME type from the stored file extension.
func ContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".ogg", ".opus":
		return "audio/ogg"
	case ".webm":
		return "audio/webm"
	case ".m4a":
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}
