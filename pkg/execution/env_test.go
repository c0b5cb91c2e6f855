package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcsc-project/tcsc/pkg/errors"
)

func TestParseEnvironment(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]string
		wantErr string
	}{
		{"defaults_provider", nil, map[string]string{"provider": "default"}, ""},
		{"provider", []string{"provider=azure"}, map[string]string{"provider": "azure"}, ""},
		{
			"hana_scale_up_complete",
			[]string{"provider=aws", "cluster_type=hana_scale_up", "hana_scenario=performance_optimized", "architecture_type=angi"},
			map[string]string{"provider": "aws", "cluster_type": "hana_scale_up", "hana_scenario": "performance_optimized", "architecture_type": "angi"},
			"",
		},
		{"malformed", []string{"provider"}, nil, "key=value"},
		{"unknown_key", []string{"color=blue"}, nil, "invalid environment parameter: color"},
		{"bad_value", []string{"provider=mainframe"}, nil, `invalid value for "provider"`},
		{"scale_up_needs_scenario", []string{"cluster_type=hana_scale_up", "architecture_type=classic"}, nil, `"hana_scenario" must be set`},
		{"scale_out_needs_architecture", []string{"cluster_type=hana_scale_out"}, nil, `"architecture_type" must be set`},
		{"ascs_ers_needs_ensa", []string{"cluster_type=ascs_ers", "filesystem_type=simple_mount"}, nil, `"ensa_version" must be set`},
		{"ascs_ers_needs_fs", []string{"cluster_type=ascs_ers", "ensa_version=ensa2"}, nil, `"filesystem_type" must be set`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := ParseEnvironment(tt.pairs)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, errors.IsValidationError(err))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, env)
		})
	}
}

func TestParsePairs_NoDependencyCheck(t *testing.T) {
	env, err := ParsePairs([]string{"cluster_type=hana_scale_out"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"cluster_type": "hana_scale_out"}, env)

	_, err = ParsePairs([]string{"cluster_type=nope"})
	assert.True(t, errors.IsValidationError(err))
}
