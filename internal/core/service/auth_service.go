package service

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/tommypurcell/autoscape-api/internal/core/domain"
	"github.com/tommypurcell/autoscape-api/internal/core/ports"
)

// AuthService implements registration and login. New accounts start with a
// small credit grant so a fresh signup can generate immediately.
type AuthService struct {
	repo        ports.AuthRepository
	ledger      ports.CreditLedger
	jwtSecret   string
	tokenTTL    time.Duration
	signupGrant int
}

func NewAuthService(repo ports.AuthRepository, ledger ports.CreditLedger, jwtSecret string, tokenTTL time.Duration, signupGrant int) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{
		repo:        repo,
		ledger:      ledger,
		jwtSecret:   jwtSecret,
		tokenTTL:    tokenTTL,
		signupGrant: signupGrant,
	}
}

func (s *AuthService) Register(ctx context.Context, email, password, name string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Role:         domain.RoleMember,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return nil, err
	}

	if s.signupGrant > 0 && s.ledger != nil {
		if _, err := s.ledger.Grant(ctx, created.ID, s.signupGrant); err != nil {
			// The account exists; the grant can be repaired out of band.
			return created, nil
		}
	}
	return created, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, domain.ErrInvalidCredentials
	}

	token, err := s.generateToken(user)
	if err != nil {
		return "", nil, err
	}

	return token, user, nil
}

func (s *AuthService) generateToken(user *domain.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"role":  user.Role,
		"exp":   time.Now().Add(s.tokenTTL).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.jwtSecret))
}
