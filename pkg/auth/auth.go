package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
)

const (
	XUserNameHeader = "X-User-Name"
	XUserRoleHeader = "X-User-Role"
)

const (
	RoleUser  = "user"
	RoleStaff = "staff"
	RoleAdmin = "admin"
)

var ErrNoAuth = errors.New("no auth context")

type Profile struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type Claims struct {
	jwt.RegisteredClaims
	Profile Profile `json:"profile"`
}

type ctxKey struct{}

func SetAuthContext(ctx context.Context, username, role string) context.Context {
	return context.WithValue(ctx, ctxKey{}, Profile{Username: username, Role: role})
}

func FromContext(ctx context.Context) (Profile, error) {
	p, ok := ctx.Value(ctxKey{}).(Profile)
	if !ok || p.Username == "" {
		return Profile{}, ErrNoAuth
	}
	return p, nil
}
