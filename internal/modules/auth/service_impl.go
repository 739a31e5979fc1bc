package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
)

// Config holds the operator credentials and signing key, loaded from the
// environment in main.
type Config struct {
	AdminEmail        string
	AdminPasswordHash string // bcrypt hash
	JWTSecret         string
}

type service struct{ cfg Config }

// NewService creates a new auth service guarding the operator endpoints.
func NewService(cfg Config) Service {
	return &service{cfg: cfg}
}

func (s *service) Login(ctx context.Context, email, password string) (string, error) {
	if !strings.EqualFold(email, s.cfg.AdminEmail) {
		return "", errors.New("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.AdminPasswordHash), []byte(password)); err != nil {
		return "", errors.New("invalid credentials")
	}

	expirationTime := time.Now().Add(24 * time.Hour)
	claims := &jwt.StandardClaims{
		Subject:   s.cfg.AdminEmail,
		ExpiresAt: expirationTime.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}
