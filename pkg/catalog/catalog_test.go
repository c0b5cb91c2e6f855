package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcsc-project/tcsc/pkg/errors"
)

func decode(t *testing.T, doc string) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(doc), &out))
	return out
}

const corosyncCheck = `{
	"id": "156F64",
	"name": "Corosync token timeout",
	"description": " Corosync token timeout is set to expected value ",
	"group": "Corosync",
	"remediation": "## Remediation\nAdjust the token.",
	"metadata": {"target_type": "cluster", "provider": ["azure", "aws"], "cluster_type": "hana_scale_up"},
	"facts": [
		{"name": "corosync_token_timeout", "gatherer": "corosync.conf@v1"},
		{"name": "runtime_token", "gatherer": "corosync.conf@v1"}
	],
	"expectations": [{"name": "timeout", "type": "expect"}]
}`

func TestClassify(t *testing.T) {
	def, err := Classify(decode(t, corosyncCheck))
	require.NoError(t, err)

	assert.Equal(t, "156F64", def.ID)
	assert.Equal(t, "Corosync token timeout is set to expected value", def.Description)
	assert.Equal(t, "Corosync", def.Group)
	assert.Equal(t, map[string]string{"target_type": "cluster"}, def.RequiredMetadata)
	assert.Empty(t, def.MissingMetadata())
	assert.Equal(t, []string{"azure", "aws"}, def.Environment["provider"])
	assert.Equal(t, []string{"hana_scale_up"}, def.Environment["cluster_type"])
	assert.Equal(t, ExpectationSingle, def.ExpectationType)
	assert.Equal(t, []string{"corosync.conf@v1"}, def.Gatherers)
	assert.Equal(t, SupportSupported, def.SupportStatus)
	assert.Equal(t, []string{"corosync.conf"}, def.ManifestEntries())
}

func TestClassify_ExpectationTypes(t *testing.T) {
	tests := []struct {
		name         string
		expectations string
		want         ExpectationType
		wantErr      bool
	}{
		{"expect", `[{"type":"expect"},{"type":"expect"}]`, ExpectationSingle, false},
		{"expect_same", `[{"type":"expect_same"}]`, ExpectationMulti, false},
		{"expect_enum", `[{"type":"expect_enum"}]`, ExpectationSingleEnum, false},
		{"mixed", `[{"type":"expect"},{"type":"expect_same"}]`, "", true},
		{"unrecognised", `[{"type":"expect_maybe"}]`, "", true},
		{"empty", `[]`, "", true},
		{"missing_type", `[{"name":"x"}]`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := decode(t, `{"id":"ABC123","expectations":`+tt.expectations+`}`)
			def, err := Classify(raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsMetadataError(err))
				assert.Contains(t, err.Error(), "ABC123")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, def.ExpectationType)
		})
	}
}

func TestClassify_SupportStatus(t *testing.T) {
	tests := []struct {
		name      string
		gatherers []string
		want      SupportStatus
	}{
		{"supported", []string{"sysctl@v1"}, SupportSupported},
		{"supported_mixed_versions", []string{"sysctl", "fstab@v1"}, SupportSupported},
		{"recognised_unsupported", []string{"sysctl@v1", "systemd@v2"}, SupportUnsupported},
		{"never_seen", []string{"unheard_of_gatherer"}, SupportUnknown},
		{"partly_unknown", []string{"sysctl@v1", "unheard_of_gatherer"}, SupportUnknown},
		{"none", nil, SupportSupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facts := make([]interface{}, 0, len(tt.gatherers))
			for _, g := range tt.gatherers {
				facts = append(facts, map[string]interface{}{"gatherer": g})
			}
			raw := map[string]interface{}{
				"id":           "X",
				"facts":        facts,
				"expectations": []interface{}{map[string]interface{}{"type": "expect"}},
			}
			def, err := Classify(raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, def.SupportStatus)
		})
	}
}

func TestClassify_MissingTargetTypeIsNotAnError(t *testing.T) {
	def, err := Classify(decode(t, `{"id":"X","metadata":{},"expectations":[{"type":"expect_same"}]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"target_type"}, def.MissingMetadata())
}

func TestClassify_NoID(t *testing.T) {
	_, err := Classify(decode(t, `{"expectations":[{"type":"expect"}]}`))
	assert.True(t, errors.IsMetadataError(err))
}

func TestClassifyCatalog_BadEntryDoesNotFailCatalog(t *testing.T) {
	items := []map[string]interface{}{
		decode(t, corosyncCheck),
		decode(t, `{"id":"BAD","expectations":[{"type":"expect"},{"type":"expect_enum"}]}`),
		decode(t, `{"id":"OK2","expectations":[{"type":"expect_same"}]}`),
	}
	defs, errs := ClassifyCatalog(items)
	require.Len(t, defs, 2)
	assert.Equal(t, "156F64", defs[0].ID)
	assert.Equal(t, "OK2", defs[1].ID)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "BAD")

	found, ok := Find(defs, "OK2")
	assert.True(t, ok)
	assert.Equal(t, ExpectationMulti, found.ExpectationType)
	_, ok = Find(defs, "BAD")
	assert.False(t, ok)
}

func TestManifestEntries(t *testing.T) {
	assert.Equal(t, []string{"pacemaker_files"}, ManifestEntries("cibadmin@v1"))
	assert.Equal(t, []string{"usr_sap", "multi-user.target.wants"}, ManifestEntries("dir_scan"))
	assert.Equal(t, []string{"rpm_packages"}, ManifestEntries("package_version@v1"))
	assert.Nil(t, ManifestEntries("systemd@v2"))

	def := CheckDefinition{Gatherers: []string{"dir_scan@v1", "sap_profiles@v1"}}
	assert.Equal(t, []string{"usr_sap", "multi-user.target.wants"}, def.ManifestEntries())
}
