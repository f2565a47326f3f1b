package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrNotFound = errors.New("not found")

// ConflictError reports a unique constraint violation. Fields holds the API names
// of the colliding columns.
type ConflictError struct {
	Fields []string
	Err    error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s", strings.Join(e.Fields, ", "))
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

type Store interface {
	GetByAddress(ctx context.Context, address string) (Profile, error)
	GetByExternalID(ctx context.Context, id string) (Profile, error)
	GetByHandle(ctx context.Context, handle string) (Profile, error)
	Create(ctx context.Context, p Profile) (Profile, error)
	Update(ctx context.Context, address string, patch ProfilePatch) (Profile, error)
}
