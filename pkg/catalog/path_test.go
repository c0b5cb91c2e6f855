package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookup(t *testing.T) {
	doc := decode(t, `{
		"id": "X",
		"metadata": {"target_type": "cluster", "provider": "azure"},
		"facts": [{"gatherer": "sysctl@v1"}, {"gatherer": "fstab@v1"}],
		"nested": [{"items": [{"v": 1}, {"v": 2}]}, {"items": [{"v": 3}]}],
		"partial": [{"gatherer": "a"}, {"name": "no gatherer"}],
		"scalar": 5
	}`)

	tests := []struct {
		name  string
		path  string
		want  interface{}
		found bool
	}{
		{"top_level", "id", "X", true},
		{"dotted", "metadata.target_type", "cluster", true},
		{"flatten", "facts[].gatherer", []interface{}{"sysctl@v1", "fstab@v1"}, true},
		{"index", "facts.1.gatherer", "fstab@v1", true},
		{"nested_flatten", "nested[].items[].v", []interface{}{
			[]interface{}{float64(1), float64(2)},
			[]interface{}{float64(3)},
		}, true},
		{"missing_key", "metadata.cluster_type", nil, false},
		{"missing_in_one_element", "partial[].gatherer", nil, false},
		{"index_out_of_range", "facts.7.gatherer", nil, false},
		{"flatten_non_list", "metadata[].x", nil, false},
		{"descend_into_scalar", "scalar.x", nil, false},
		{"key_on_list", "facts.gatherer", nil, false},
		{"empty_path", "", doc, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := Lookup(doc, tt.path)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookupStrings(t *testing.T) {
	doc := decode(t, `{"metadata":{"provider":"azure","cluster_type":["hana_scale_up"," ascs_ers "],"n":1}}`)

	got, ok := LookupStrings(doc, "metadata.provider")
	assert.True(t, ok)
	assert.Equal(t, []string{"azure"}, got)

	got, ok = LookupStrings(doc, "metadata.cluster_type")
	assert.True(t, ok)
	assert.Equal(t, []string{"hana_scale_up", "ascs_ers"}, got)

	_, ok = LookupStrings(doc, "metadata.n")
	assert.False(t, ok)

	_, ok = LookupString(doc, "metadata.cluster_type")
	assert.False(t, ok)
}

func TestLookup_NeverPanics(t *testing.T) {
	inputs := []interface{}{nil, 1, "s", []interface{}{nil}, map[string]interface{}{"a": nil}}
	for _, in := range inputs {
		assert.NotPanics(t, func() {
			Lookup(in, "a[].b.0.c[]")
		})
	}
}
