package repository

import (
	"errors"

	"github.com/amirasaad/ledger/pkg/domain"
	"gorm.io/gorm"
)

// MapGormErrorToDomain converts GORM errors to domain errors.
// Traverses the error chain to find GORM errors and maps them to appropriate domain errors.
func MapGormErrorToDomain(err error) error {
	if err == nil {
		return nil
	}

	currentErr := err
	for currentErr != nil {
		switch {
		case errors.Is(currentErr, gorm.ErrDuplicatedKey):
			return domain.ErrAlreadyExists
		case errors.Is(currentErr, gorm.ErrRecordNotFound):
			return domain.ErrNotFound
		}
		currentErr = errors.Unwrap(currentErr)
	}

	return err
}

// WrapError runs a GORM operation and maps its error.
//
//	err := WrapError(func() error {
//	    return s.db.WithContext(ctx).Create(row).Error
//	})
func WrapError(op func() error) error {
	return MapGormErrorToDomain(op())
}
