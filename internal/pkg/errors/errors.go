package errors

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is the sentinel for records absent from cache and store.
	ErrNotFound = errors.New("not found")
	// ErrInvalidFilter indicates a filter referencing an unknown column or operator.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrInvalidFilterValue indicates a filter value of the wrong shape (in/not_in need a list).
	ErrInvalidFilterValue = errors.New("invalid filter value")
	// ErrInvalidState indicates an operation against an entity whose state forbids it.
	ErrInvalidState = errors.New("invalid state")
	// ErrDuplicateKey indicates a uniqueness constraint violation on insert.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrGenerationFailure indicates the content generator exhausted its retry budget.
	ErrGenerationFailure = errors.New("generation failure")
	// ErrInvalidArgument is a generic sentinel for invalid caller input.
	ErrInvalidArgument = errors.New("invalid argument")
)

// MapStoreError translates driver-level failures into the sentinel taxonomy.
// Unique violations surface as ErrDuplicateKey (pg 23505 on postgres,
// message matching on the sqlite test driver), missing rows as ErrNotFound.
func MapStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Join(ErrNotFound, err)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.Join(ErrDuplicateKey, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.TrimSpace(pgErr.Code) == "23505" {
		return errors.Join(ErrDuplicateKey, err)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint") {
		return errors.Join(ErrDuplicateKey, err)
	}
	return err
}
