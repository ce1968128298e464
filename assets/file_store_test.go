package assets

import (
	"context"
	"errors"
	"net/url"
	"path"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) (*FileStore, *time.Time) {
	t.Helper()
	store, err := NewFileStore(t.TempDir(), "https://noticast.example.com/", "s3cret")
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return now }
	return store, &now
}

func TestFileStore_NewKeyUsesFormatExtension(t *testing.T) {
	store, _ := newTestStore(t)
	first := store.NewKey("mp3")
	second := store.NewKey(".OGG")
	if !strings.HasSuffix(first, ".mp3") || !strings.HasSuffix(second, ".ogg") {
		t.Fatalf("unexpected keys %q %q", first, second)
	}
	if first == store.NewKey("mp3") {
		t.Fatalf("expected fresh key per call")
	}
	if !strings.HasSuffix(store.NewKey(""), ".mp3") {
		t.Fatalf("expected mp3 default")
	}
}

func TestFileStore_StoreAndOpen(t *testing.T) {
	store, _ := newTestStore(t)
	key := store.NewKey("mp3")

	if err := store.Store(context.Background(), key, []byte("ID3"), "audio/mpeg"); err != nil {
		t.Fatalf("store: %v", err)
	}
	data, contentType, err := store.Open(key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if string(data) != "ID3" || contentType != "audio/mpeg" {
		t.Fatalf("unexpected asset %q %q", data, contentType)
	}
	if _, _, err := store.Open("missing.mp3"); !errors.Is(err, ErrAssetNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFileStore_PresignedLinkForUnwrittenKey(t *testing.T) {
	store, now := newTestStore(t)
	key := "never-written.mp3"

	link, err := store.PresignedURI(context.Background(), key, time.Hour)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	parsed, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	if parsed.Host != "noticast.example.com" || parsed.Path != path.Join(DefaultRoutePath, key) {
		t.Fatalf("unexpected link %q", link)
	}
	query := parsed.Query()
	if err := store.Verify(key, query.Get(QueryExpires), query.Get(QuerySignature)); err != nil {
		t.Fatalf("verify: %v", err)
	}

	*now = now.Add(2 * time.Hour)
	if err := store.Verify(key, query.Get(QueryExpires), query.Get(QuerySignature)); !errors.Is(err, ErrLinkExpired) {
		t.Fatalf("expected expired link, got %v", err)
	}
}

func TestFileStore_VerifyRejectsTampering(t *testing.T) {
	store, _ := newTestStore(t)
	link, err := store.PresignedURI(context.Background(), "a.mp3", time.Minute)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	parsed, _ := url.Parse(link)
	query := parsed.Query()

	if err := store.Verify("b.mp3", query.Get(QueryExpires), query.Get(QuerySignature)); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected other key rejected, got %v", err)
	}
	if err := store.Verify("a.mp3", "9999999999", query.Get(QuerySignature)); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected extended expiry rejected, got %v", err)
	}
	if err := store.Verify("a.mp3", query.Get(QueryExpires), "zz"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected malformed signature rejected, got %v", err)
	}
}

func TestValidateKey(t *testing.T) {
	for _, key := range []string{"", " a.mp3", "../etc/passwd", "dir/a.mp3", `dir\a.mp3`, ".hidden"} {
		if err := ValidateKey(key); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("expected %q rejected, got %v", key, err)
		}
	}
	if err := ValidateKey("0b6f.mp3"); err != nil {
		t.Fatalf("expected plain key accepted, got %v", err)
	}
	if _, err := NewFileStore("", "", ""); err == nil {
		t.Fatalf("expected missing secret rejected")
	}
}
