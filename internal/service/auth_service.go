package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"storefront/internal/models"
	"storefront/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const defaultSessionTTL = 24 * time.Hour

// Session is a signed login token handed to the browser as a cookie.
type Session struct {
	Token     string
	TokenID   string
	UserID    int
	ExpiresAt time.Time
}

// Claims defines JWT claims
type Claims struct {
	jwt.RegisteredClaims
	UserID int `json:"user_id"`
}

// AuthService handles accounts and login sessions.
type AuthService struct {
	users    repository.Authorization
	sessions repository.SessionStore
	tx       repository.Transactor
	key      []byte
	ttl      time.Duration
	now      func() time.Time
}

var _ Authorization = (*AuthService)(nil)

// NewAuthService builds the service. sessions and tx may be nil: revocation
// is then disabled and registration runs without a transaction.
func NewAuthService(users repository.Authorization, sessions repository.SessionStore, tx repository.Transactor, secret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		tx:       tx,
		key:      []byte(secret),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Register validates input, stores a bcrypt hash and returns the new user.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	name = strings.TrimSpace(name)
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	u := models.User{Name: name, Email: email, PasswordHash: hash, CreatedAt: s.now().UTC()}
	err = s.withUsers(ctx, func(users repository.Authorization) error {
		existing, err := users.GetByEmail(ctx, email)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrEmailInUse
		}
		id, err := users.Create(ctx, u)
		if err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrEmailInUse
			}
			return err
		}
		u.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *AuthService) withUsers(ctx context.Context, fn func(users repository.Authorization) error) error {
	if s.tx == nil {
		return fn(s.users)
	}
	return s.tx.WithTx(ctx, func(tx *repository.Repository) error {
		return fn(tx.Users)
	})
}

// Authenticate checks credentials and issues a session.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	if err := verifyPassword(u.PasswordHash, password); err != nil {
		return nil, ErrInvalidPassword
	}
	return s.IssueSession(ctx, u.ID)
}

// IssueSession signs a fresh token for userID.
func (s *AuthService) IssueSession(_ context.Context, userID int) (*Session, error) {
	now := s.now()
	sess := &Session{
		TokenID:   uuid.NewString(),
		UserID:    userID,
		ExpiresAt: now.Add(s.ttl),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.TokenID,
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID: userID,
	})
	signed, err := token.SignedString(s.key)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}
	sess.Token = signed
	return sess, nil
}

// ParseSession returns the user id of a valid, unrevoked token.
func (s *AuthService) ParseSession(ctx context.Context, token string) (int, error) {
	claims, err := s.parseClaims(token)
	if err != nil {
		return 0, err
	}
	if s.sessions != nil && claims.ID != "" {
		revoked, err := s.sessions.IsRevoked(ctx, claims.ID)
		if err != nil {
			return 0, fmt.Errorf("check session revocation: %w", err)
		}
		if revoked {
			return 0, fmt.Errorf("%w: session revoked", ErrInvalidToken)
		}
	}
	return claims.UserID, nil
}

// Logout revokes the token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.parseClaims(token)
	if err != nil {
		return err
	}
	if s.sessions == nil || claims.ID == "" {
		return nil
	}
	until := s.now().Add(s.ttl)
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	return s.sessions.Revoke(ctx, claims.ID, until)
}

func (s *AuthService) CurrentUser(ctx context.Context, userID int) (*models.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (s *AuthService) parseClaims(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Ensure HMAC signing is used
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.key, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID <= 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: %q is not a valid email", ErrInvalidInput, email)
	}
	return email, nil
}

// helper: hash password safely
func hashPassword(password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", fmt.Errorf("%w: password is empty", ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%w: hash password: %v", ErrInvalidInput, err)
	}
	return string(hash), nil
}

// helper: verify password against hash
func verifyPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
