package auth

import "context"

// Service defines the interface for operator authentication.
type Service interface {
	Login(ctx context.Context, email, password string) (string, error)
}
