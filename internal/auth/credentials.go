package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/crypto/pbkdf2"

	"quiz-desk/internal/domain"
	"quiz-desk/internal/metrics"
)

const (
	SaltSize   = 16
	KeySize    = 32
	Iterations = 100_000

	minPasswordLength = 6
)

// CredentialStore persists registered users. CreateCredential must return
// domain.ErrDuplicateUsername when the username is taken and GetCredential
// must return domain.ErrUserNotFound for unknown usernames.
type CredentialStore interface {
	CreateCredential(ctx context.Context, cred domain.Credential) error
	GetCredential(ctx context.Context, username string) (domain.Credential, error)
}

// Manager registers and authenticates users.
type Manager struct {
	store  CredentialStore
	log    *zap.Logger
	random io.Reader
	// burned on unknown usernames so lookups cost the same either way
	dummySalt []byte
}

func NewManager(store CredentialStore, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{store: store, log: log, random: rand.Reader, dummySalt: make([]byte, SaltSize)}
	_, _ = io.ReadFull(rand.Reader, m.dummySalt)
	return m
}

// Register validates the input, derives a salted key and stores it.
func (m *Manager) Register(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return fmt.Errorf("%w: username and password are required", domain.ErrValidation)
	}
	if err := CheckPasswordPolicy(password); err != nil {
		return err
	}

	if _, err := m.store.GetCredential(ctx, username); err == nil {
		return domain.ErrDuplicateUsername
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return err
	}

	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(m.random, salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	cred := domain.Credential{
		Username: username,
		Salt:     salt,
		Key:      DeriveKey(password, salt),
	}
	if err := m.store.CreateCredential(ctx, cred); err != nil {
		return err
	}
	m.log.Info("user registered", zap.String("username", username))
	return nil
}

// Authenticate reports whether password matches the stored key for username.
// Unknown users return false with a nil error.
func (m *Manager) Authenticate(ctx context.Context, username, password string) (bool, error) {
	username = strings.TrimSpace(username)
	cred, err := m.store.GetCredential(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		DeriveKey(password, m.dummySalt)
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return false, nil
	}
	if err != nil {
		return false, err
	}

	ok := subtle.ConstantTimeCompare(DeriveKey(password, cred.Salt), cred.Key) == 1
	if ok {
		metrics.AuthAttempts.WithLabelValues("success").Inc()
	} else {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
	}
	return ok, nil
}

// Login is Authenticate for transports: a mismatch becomes domain.ErrAuthFailure.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	ok, err := m.Authenticate(ctx, username, password)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrAuthFailure
	}
	return nil
}

// DeriveKey runs PBKDF2-HMAC-SHA256 over password and salt.
func DeriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, Iterations, KeySize, sha256.New)
}

// CheckPasswordPolicy requires at least 6 characters with a letter and a digit.
func CheckPasswordPolicy(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return domain.ErrWeakPassword
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return domain.ErrWeakPassword
	}
	return nil
}
