package main

import (
	"context"
	"fmt"
	"testing"

	flags "github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/assert"

	"github.com/tcsc-project/tcsc/pkg/errors"
)

func TestExitStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, 0},
		{"help", &flags.Error{Type: flags.ErrHelp}, 0},
		{"bad_flag", &flags.Error{Type: flags.ErrUnknownFlag}, 2},
		{"connection", errors.NewConnectionError("error connecting", nil), 1},
		{"auth", errors.NewAuthError("could not authenticate", nil), 1},
		{"metadata", errors.NewMetadataError("check X misses target_type", nil), 2},
		{"validation", errors.NewValidationError("invalid environment parameter", nil), 2},
		{"response", errors.NewResponseError("check X does not exist", nil), 3},
		{"timeout", errors.NewTimeoutError("execution e1 did not finish in time", nil), 4},
		{"wrapped_timeout", fmt.Errorf("run: %w", errors.NewTimeoutError("late", nil)), 4},
		{"other", context.Canceled, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitStatus(tt.err))
		})
	}
}

func TestFilterCatalog(t *testing.T) {
	items := []map[string]interface{}{
		{"id": "156F64", "name": "Corosync token"},
		{"id": "21FCA6", "name": "SBD timeout"},
		{"name": "no id"},
	}

	assert.Equal(t, items, filterCatalog(items, nil))
	assert.Equal(t, []map[string]interface{}{items[1]}, filterCatalog(items, []string{"21FCA6", "FFFFFF"}))
	assert.Empty(t, filterCatalog(items, []string{"FFFFFF"}))
}
