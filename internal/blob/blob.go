// Package blob stores uploaded file bodies. Records in the study store keep
// only the object key.
package blob

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	EngineLocal = "local"
	EngineCOS   = "cos"
)

var (
	ErrNotFound         = errors.New("blob not found")
	ErrInvalidKey       = errors.New("invalid blob key")
	ErrCOSNotConfigured = errors.New("cos storage is not configured")
)

type Store interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

type Options struct {
	Dir string
	COS COSConfig
}

func NewByEngine(engine string, opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", EngineLocal:
		return NewLocalStore(opts.Dir)
	case EngineCOS:
		return NewCOSStore(opts.COS)
	default:
		return nil, fmt.Errorf("unsupported blob engine: %s", engine)
	}
}

var fileNamePattern = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)

// ObjectKey builds a unique key for a user's upload: user/unix_hex_name.
func ObjectKey(userID, fileName string) string {
	return fmt.Sprintf("%s/%d_%s_%s", sanitizeSegment(userID), time.Now().Unix(), randomHex(4), sanitizeFileName(fileName))
}

func sanitizeFileName(fileName string) string {
	base := strings.TrimSpace(filepath.Base(fileName))
	if base == "" || base == "." || base == "/" {
		base = "upload.bin"
	}
	base = fileNamePattern.ReplaceAllString(base, "_")
	if base == "" {
		base = "upload.bin"
	}
	return base
}

func sanitizeSegment(s string) string {
	s = fileNamePattern.ReplaceAllString(strings.TrimSpace(s), "_")
	s = strings.Trim(s, ".")
	if s == "" {
		return "anon"
	}
	return s
}

func randomHex(bytesLen int) string {
	if bytesLen <= 0 {
		bytesLen = 4
	}
	buf := make([]byte, bytesLen)
	if _, err := rand.Read(buf); err != nil {
		return "r"
	}
	return hex.EncodeToString(buf)
}

// validKey rejects absolute keys and keys that climb out of the root.
func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}
