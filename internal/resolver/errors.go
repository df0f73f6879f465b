package resolver

import "github.com/cockroachdb/errors"

// ErrIncompleteDefaults indicates the global option table lacks an option.
var ErrIncompleteDefaults = errors.New("incomplete global defaults")
