package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"gemmachat/internal/model"
	"gemmachat/internal/pkg/jwtutil"
	"gemmachat/internal/repository"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUsernameExists    = errors.New("username already exists")
	ErrInvalidCredential = errors.New("invalid username or password")
	ErrUnauthorized      = errors.New("invalid or expired session")
)

// AuthService owns user credentials and the session lifecycle. A session is
// valid only when both its signed claim verifies AND a live row exists in the
// store; the row is what makes logout effective before the claim expires.
type AuthService struct {
	userRepo    *repository.UserRepository
	sessionRepo *repository.SessionRepository
	secret      string
	sessionTTL  time.Duration
}

type LoginResult struct {
	Token string
	User  *model.User
}

func NewAuthService(
	userRepo *repository.UserRepository,
	sessionRepo *repository.SessionRepository,
	secret string,
	sessionTTL time.Duration,
) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		secret:      secret,
		sessionTTL:  sessionTTL,
	}
}

func (s *AuthService) Register(username, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidInput
	}

	existing, err := s.userRepo.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUsernameExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password failed: %w", err)
	}

	user := &model.User{
		Username:     username,
		PasswordHash: string(hash),
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies credentials and issues a session. The caller never learns
// whether the username or the password was wrong.
func (s *AuthService) Login(username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredential
	}

	user, err := s.userRepo.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredential
	}

	token, err := s.issueSession(user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, User: user}, nil
}

func (s *AuthService) issueSession(user *model.User) (string, error) {
	expiresAt := time.Now().Add(s.sessionTTL)
	token, err := jwtutil.GenerateToken(s.secret, s.sessionTTL, user.ID, user.Username)
	if err != nil {
		return "", err
	}

	session := &model.Session{
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: expiresAt,
	}
	if err := s.sessionRepo.Create(session); err != nil {
		return "", err
	}
	return token, nil
}

// Authenticate resolves a bearer token to its user. Two independent checks
// must both pass: the embedded signature and expiry, then a live store row.
// Presenting a signature-expired token deletes its row as lazy cleanup.
// Every failure collapses to ErrUnauthorized.
func (s *AuthService) Authenticate(token string) (*model.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnauthorized
	}

	if err := s.verifyClaim(token); err != nil {
		return nil, err
	}
	return s.verifyStored(token)
}

func (s *AuthService) verifyClaim(token string) error {
	_, err := jwtutil.ParseToken(s.secret, token)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwtutil.ErrTokenExpired):
		if delErr := s.sessionRepo.DeleteByToken(token); delErr != nil {
			return delErr
		}
		return ErrUnauthorized
	default:
		return ErrUnauthorized
	}
}

func (s *AuthService) verifyStored(token string) (*model.User, error) {
	session, err := s.sessionRepo.GetActiveByToken(token, time.Now())
	if err != nil {
		return nil, err
	}
	if session == nil {
		// valid signature but no row: revoked, or never issued here
		return nil, ErrUnauthorized
	}

	user, err := s.userRepo.GetByID(session.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUnauthorized
	}
	return user, nil
}

// Logout revokes the session row. Revoking an absent token is a no-op.
func (s *AuthService) Logout(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	return s.sessionRepo.DeleteByToken(token)
}

// EnsureDefaultAdmin creates the bootstrap admin/admin account when no user
// with that name exists. Called once during controlled startup; idempotent.
func (s *AuthService) EnsureDefaultAdmin() error {
	existing, err := s.userRepo.GetByUsername("admin")
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	if _, err := s.Register("admin", "admin"); err != nil && !errors.Is(err, ErrUsernameExists) {
		return err
	}
	return nil
}
