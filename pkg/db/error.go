package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// IsDuplicateKeyErr reports unique-constraint violations across the supported dialects.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	// postgres 23505, mysql 1062, sqlite 2067
	msg := err.Error()
	for _, marker := range []string{
		"duplicate key value violates unique constraint",
		"Error 1062",
		"UNIQUE constraint failed",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// IsNotFound reports gorm's record-not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
