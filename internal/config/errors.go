package config

import (
	"github.com/cockroachdb/errors"
)

// Errors returned by configuration operations.
var (
	// ErrSettingNotFound indicates the setting path doesn't exist.
	ErrSettingNotFound = errors.New("setting not found")

	// ErrUnknownSetting indicates a session override for an option that is
	// not part of the schema.
	ErrUnknownSetting = errors.New("unknown setting")

	// ErrValidationFailed indicates the merged option table fails schema
	// validation. The previously published snapshot stays active.
	ErrValidationFailed = errors.New("validation failed")

	// ErrInvalidPath indicates an invalid setting path format.
	ErrInvalidPath = errors.New("invalid setting path")

	// ErrClosed indicates the configuration was closed.
	ErrClosed = errors.New("configuration closed")
)
