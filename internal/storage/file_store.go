// Package storage keeps uploaded employee documents and hands out time-limited download links.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/afero"
)

const signedURLAudience = "files"

var (
	ErrInvalidPath   = errors.New("storage: invalid object path")
	ErrObjectExists  = errors.New("storage: object already exists")
	ErrObjectMissing = errors.New("storage: object not found")
	ErrInvalidToken  = errors.New("storage: invalid or expired download token")
)

// FileStore is an object store over an afero filesystem. Signed URLs are HS256 tokens
// naming the object path, served back through Open.
type FileStore struct {
	fs         afero.Fs
	signingKey []byte
	baseURL    string
	now        func() time.Time
}

func NewFileStore(fs afero.Fs, signingKey []byte, baseURL string) *FileStore {
	return &FileStore{
		fs:         fs,
		signingKey: signingKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		now:        time.Now,
	}
}

// NewDiskStore roots the store at dir on the local disk.
func NewDiskStore(dir string, signingKey []byte, baseURL string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return NewFileStore(afero.NewBasePathFs(afero.NewOsFs(), dir), signingKey, baseURL), nil
}

func cleanPath(p string) (string, error) {
	if p == "" || strings.HasPrefix(p, "/") {
		return "", ErrInvalidPath
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidPath
	}
	return cleaned, nil
}

// Put writes r under p and returns the stored path. Existing objects are never overwritten.
func (s *FileStore) Put(ctx context.Context, p string, r io.Reader) (string, error) {
	key, err := cleanPath(p)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	exists, err := afero.Exists(s.fs, key)
	if err != nil {
		return "", err
	}
	if exists {
		return "", ErrObjectExists
	}
	if err := s.fs.MkdirAll(path.Dir(key), 0o750); err != nil {
		return "", fmt.Errorf("create directory for %s: %w", key, err)
	}

	f, err := s.fs.Create(key)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", key, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(key)
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(key)
		return "", fmt.Errorf("close %s: %w", key, err)
	}
	return key, nil
}

// Remove deletes the object at p. Removing a missing object is not an error.
func (s *FileStore) Remove(ctx context.Context, p string) error {
	key, err := cleanPath(p)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.fs.Remove(key); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// SignedURL returns a download URL for p that stops working after ttl.
func (s *FileStore) SignedURL(p string, ttl time.Duration) (string, error) {
	key, err := cleanPath(p)
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		return "", fmt.Errorf("storage: ttl must be positive, got %s", ttl)
	}
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   key,
		Audience:  jwt.ClaimStrings{signedURLAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign url for %s: %w", key, err)
	}
	return s.baseURL + "/files/" + signed, nil
}

// Open verifies a download token and opens the object it names.
func (s *FileStore) Open(token string) (afero.File, os.FileInfo, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(signedURLAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	key, err := cleanPath(claims.Subject)
	if err != nil {
		return nil, nil, ErrInvalidToken
	}
	f, err := s.fs.Open(key)
	if os.IsNotExist(err) {
		return nil, nil, ErrObjectMissing
	}
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return f, info, nil
}
