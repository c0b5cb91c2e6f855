package monitoring

import "github.com/tcsc-project/tcsc/pkg/errors"

// ValidatePollOptions validates polling configuration
func ValidatePollOptions(options PollOptions) error {
	if options.Interval <= 0 {
		return errors.NewValidationError("poll interval must be positive", nil)
	}

	if options.Timeout < 0 {
		return errors.NewValidationError("poll timeout cannot be negative", nil)
	}

	if options.Timeout > 0 && options.Interval > options.Timeout {
		return errors.NewValidationError("poll interval must not exceed the timeout", nil)
	}

	return nil
}
