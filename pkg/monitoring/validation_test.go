package monitoring

import (
	"testing"
	"time"

	"github.com/tcsc-project/tcsc/pkg/errors"

	"github.com/stretchr/testify/assert"
)

func TestValidatePollOptions(t *testing.T) {
	tests := []struct {
		name      string
		options   PollOptions
		shouldErr bool
	}{
		{
			name:      "valid_options",
			options:   PollOptions{Interval: 200 * time.Millisecond, Timeout: 3 * time.Second},
			shouldErr: false,
		},
		{
			name:      "no_timeout",
			options:   PollOptions{Interval: time.Second},
			shouldErr: false,
		},
		{
			name:      "zero_interval",
			options:   PollOptions{Interval: 0, Timeout: time.Second},
			shouldErr: true,
		},
		{
			name:      "negative_timeout",
			options:   PollOptions{Interval: time.Second, Timeout: -time.Second},
			shouldErr: true,
		},
		{
			name:      "interval_exceeds_timeout",
			options:   PollOptions{Interval: 5 * time.Second, Timeout: time.Second},
			shouldErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePollOptions(tt.options)
			if tt.shouldErr {
				assert.Error(t, err)
				assert.True(t, errors.IsValidationError(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
