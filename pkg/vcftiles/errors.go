package vcftiles

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// Error kinds used by this package:
//   errors.Invalid   configuration and parse errors, fatal before any output
//   errors.NotExist  identifier lookup misses
//   errors.Integrity internal invariant violations

func parseError(id uint64, key, value, reason string) error {
	return errors.E(errors.Invalid,
		fmt.Sprintf("variant %d: INFO %s=%q: %s", id, key, value, reason))
}

func invariantError(format string, args ...interface{}) error {
	return errors.E(errors.Integrity, "internal invariant violated: "+fmt.Sprintf(format, args...))
}

// IsParseError reports whether err is a configuration or parse error
func IsParseError(err error) bool {
	return errors.Is(errors.Invalid, err)
}

// IsNotFound reports whether err is an identifier lookup miss
func IsNotFound(err error) bool {
	return errors.Is(errors.NotExist, err)
}

// IsInvariant reports whether err is an internal invariant violation
func IsInvariant(err error) bool {
	return errors.Is(errors.Integrity, err)
}
