package assets

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-noticast/core"
	"github.com/google/uuid"
)

const (
	DefaultDir        = "audio"
	DefaultRoutePath  = "/assets"
	QueryExpires      = "expires"
	QuerySignature    = "signature"
	defaultFileFormat = "mp3"
)

var (
	ErrInvalidKey       = errors.New("assets: invalid asset key")
	ErrLinkExpired      = errors.New("assets: link expired")
	ErrInvalidSignature = errors.New("assets: signature verification failed")
	ErrAssetNotFound    = errors.New("assets: asset not found")
)

var contentTypes = map[string]string{
	"mp3":  "audio/mpeg",
	"ogg":  "audio/ogg",
	"opus": "audio/ogg",
	"aac":  "audio/aac",
	"flac": "audio/flac",
	"wav":  "audio/wav",
	"pcm":  "audio/L16",
}

// FileStore keeps audio on the local filesystem and hands out links signed
// with HMAC-SHA256 over the key and expiry. Links are computed without
// touching the filesystem, so a link can point at a key that was never
// written.
type FileStore struct {
	Dir     string
	BaseURL string
	Secret  []byte
	Now     func() time.Time
}

func NewFileStore(dir string, baseURL string, secret string) (*FileStore, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("assets: signing secret is required")
	}
	if strings.TrimSpace(dir) == "" {
		dir = DefaultDir
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL != "" {
		if _, err := url.Parse(baseURL); err != nil {
			return nil, fmt.Errorf("assets: invalid base url: %w", err)
		}
	}
	return &FileStore{
		Dir:     dir,
		BaseURL: baseURL,
		Secret:  []byte(secret),
		Now:     time.Now,
	}, nil
}

func (s *FileStore) NewKey(format string) string {
	format = strings.Trim(strings.ToLower(strings.TrimSpace(format)), ".")
	if format == "" {
		format = defaultFileFormat
	}
	return uuid.NewString() + "." + format
}

func (s *FileStore) Store(_ context.Context, key string, data []byte, _ string) error {
	filePath, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return fmt.Errorf("assets: create directory: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return fmt.Errorf("assets: write %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) PresignedURI(_ context.Context, key string, ttl time.Duration) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = core.DefaultLinkTTL
	}
	expires := s.now().Add(ttl).Unix()
	query := url.Values{}
	query.Set(QueryExpires, strconv.FormatInt(expires, 10))
	query.Set(QuerySignature, s.sign(key, expires))
	return s.BaseURL + path.Join(DefaultRoutePath, url.PathEscape(key)) + "?" + query.Encode(), nil
}

// Verify checks a link's expiry and signature.
func (s *FileStore) Verify(key string, expires string, signature string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	expiresAt, err := strconv.ParseInt(strings.TrimSpace(expires), 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	decoded, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return ErrInvalidSignature
	}
	expected, _ := hex.DecodeString(s.sign(key, expiresAt))
	if subtle.ConstantTimeCompare(decoded, expected) != 1 {
		return ErrInvalidSignature
	}
	if s.now().Unix() > expiresAt {
		return ErrLinkExpired
	}
	return nil
}

// Open reads a stored asset and its content type.
func (s *FileStore) Open(key string) ([]byte, string, error) {
	filePath, err := s.pathFor(key)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", ErrAssetNotFound
		}
		return nil, "", fmt.Errorf("assets: read %s: %w", key, err)
	}
	return data, ContentTypeFor(key), nil
}

// ContentTypeFor derives a MIME type from the key extension.
func ContentTypeFor(key string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(key)), ".")
	if contentType, ok := contentTypes[ext]; ok {
		return contentType
	}
	return "application/octet-stream"
}

// ValidateKey accepts only flat file names so keys cannot escape the store
// directory.
func ValidateKey(key string) error {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" || trimmed != key {
		return ErrInvalidKey
	}
	if strings.ContainsAny(key, `/\`) || key == "." || key == ".." || strings.HasPrefix(key, ".") {
		return ErrInvalidKey
	}
	return nil
}

func (s *FileStore) pathFor(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	dir := s.Dir
	if strings.TrimSpace(dir) == "" {
		dir = DefaultDir
	}
	return filepath.Join(dir, key), nil
}

func (s *FileStore) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.Secret)
	_, _ = mac.Write([]byte(key))
	_, _ = mac.Write([]byte{'\n'})
	_, _ = mac.Write([]byte(strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *FileStore) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

var _ core.AssetStore = (*FileStore)(nil)
