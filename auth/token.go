package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoToken is matched by every minting failure
var ErrNoToken = errors.New("no token available")

// Token is a short lived bearer credential
type Token struct {
	Value     string
	ExpiresAt time.Time
}

func (t Token) Empty() bool {
	return t.Value == ""
}

func (t Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// TokenProvider mints a fresh token on every call. Implementations must not
// cache: the transport asks again whenever it needs a credential.
type TokenProvider interface {
	Mint(ctx context.Context) (Token, error)
}

type TokenProviderFunc func(ctx context.Context) (Token, error)

func (f TokenProviderFunc) Mint(ctx context.Context) (Token, error) {
	return f(ctx)
}

// StaticToken always returns the same token. Useful for tests and local brokers.
func StaticToken(value string) TokenProvider {
	return TokenProviderFunc(
		func(context.Context) (Token, error) {
			return Token{Value: value}, nil
		},
	)
}

// AuthError wraps a failure to mint a token
type AuthError struct {
	Region string
	Cause  error
}

func (e *AuthError) Error() string {
	if e.Region == "" {
		return fmt.Sprintf("mint token: %v", e.Cause)
	}
	return fmt.Sprintf("mint token for region %s: %v", e.Region, e.Cause)
}

func (e *AuthError) Unwrap() error {
	return e.Cause
}

func (e *AuthError) Is(target error) bool {
	return target == ErrNoToken
}

func NewAuthError(region string, cause error) error {
	return &AuthError{Region: region, Cause: cause}
}

func AsAuthError(err error) (*AuthError, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
