// Package auth implements user registration and login with PBKDF2-SHA256
// password hashing.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"kosh/internal/core"
	"kosh/internal/storage"
)

const (
	saltBytes      = 32
	hashIterations = 100000
	keyLength      = 32
)

var ErrInvalidCredentials = errors.New("invalid username or password")

// HashPassword derives a PBKDF2-SHA256 hash over the password with a fresh
// random salt. Both return values are hex strings; the hex-encoded salt
// string itself feeds the KDF, matching how stored credentials were
// originally produced, so existing hashes keep verifying.
func HashPassword(password string) (hash, salt string, err error) {
	raw := make([]byte, saltBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("generate salt: %w", err)
	}
	salt = hex.EncodeToString(raw)
	key := pbkdf2.Key([]byte(password), []byte(salt), hashIterations, keyLength, sha256.New)
	return hex.EncodeToString(key), salt, nil
}

// VerifyPassword re-derives the hash and compares in constant time.
func VerifyPassword(password, salt, hash string) bool {
	key := pbkdf2.Key([]byte(password), []byte(salt), hashIterations, keyLength, sha256.New)
	expected, err := hex.DecodeString(hash)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(key, expected) == 1
}

// Service wraps credential handling around the user table.
type Service struct {
	storage *storage.SQLiteRepository
}

func NewService(storage *storage.SQLiteRepository) *Service {
	return &Service{storage: storage}
}

// Register creates a user with a freshly hashed password and returns the
// new user id.
func (s *Service) Register(ctx context.Context, username, email, password, fullName string) (int64, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return 0, errors.New("username is required")
	}
	if password == "" {
		return 0, errors.New("password is required")
	}

	hash, salt, err := HashPassword(password)
	if err != nil {
		return 0, err
	}
	id, err := s.storage.CreateUser(ctx, username, strings.TrimSpace(email), hash, salt, strings.TrimSpace(fullName))
	if err != nil {
		return 0, fmt.Errorf("register %s: %w", username, err)
	}
	slog.InfoContext(ctx, "Registered user", "user_id", id, "username", username)
	return id, nil
}

// Login checks the credentials and returns the user. Unknown usernames and
// wrong passwords both come back as ErrInvalidCredentials; callers cannot
// distinguish which.
func (s *Service) Login(ctx context.Context, username, password string) (*core.User, error) {
	user, err := s.storage.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, core.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("login lookup: %w", err)
	}
	if !VerifyPassword(password, user.Salt, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
