package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/unclutter/internal/model"
)

// Validation errors.
var (
	ErrNilContext        = errors.New("context cannot be nil")
	ErrEmptyString       = errors.New("string parameter cannot be empty")
	ErrNilParameter      = errors.New("parameter cannot be nil")
	ErrInvalidCredential = errors.New("invalid credential")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateCredential checks the fields every backend needs.
func validateCredential(cred *model.Credential) error {
	if cred == nil {
		return fmt.Errorf("%w: credential", ErrNilParameter)
	}
	if strings.TrimSpace(cred.ID) == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidCredential)
	}
	if cred.AccessToken == "" && cred.RefreshToken == "" {
		return fmt.Errorf("%w: no access or refresh token", ErrInvalidCredential)
	}
	return nil
}
