// Package catalog classifies the entries of the check catalog: what a
// check needs in its request, how it fans out over agents and whether the
// host containers can serve its gatherers.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tcsc-project/tcsc/pkg/errors"
)

type ExpectationType string

const (
	// ExpectationSingle is evaluated per agent ("expect")
	ExpectationSingle ExpectationType = "single"
	// ExpectationMulti compares all agents in one evaluation ("expect_same")
	ExpectationMulti ExpectationType = "multi"
	// ExpectationSingleEnum is evaluated per agent ("expect_enum")
	ExpectationSingleEnum ExpectationType = "single_enum"
)

var expectationKinds = map[string]ExpectationType{
	"expect":      ExpectationSingle,
	"expect_same": ExpectationMulti,
	"expect_enum": ExpectationSingleEnum,
}

type SupportStatus string

const (
	SupportSupported   SupportStatus = "supported"
	SupportUnsupported SupportStatus = "unsupported"
	SupportUnknown     SupportStatus = "unknown"
)

// RequiredMetadataKeys must be present in a check's metadata and are
// copied into every execution request of the check.
var RequiredMetadataKeys = []string{"target_type"}

// EnvironmentKeys are the metadata keys that restrict a check to an environment
var EnvironmentKeys = []string{
	"provider",
	"cluster_type",
	"architecture_type",
	"ensa_version",
	"filesystem_type",
	"hana_scenario",
}

// CheckDefinition is the classified form of one catalog entry. It is
// rebuilt on every catalog fetch and never mutated.
type CheckDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description"`
	Group       string `json:"group"`
	// RequiredMetadata holds the values of the RequiredMetadataKeys that
	// the check declares; missing keys are absent.
	RequiredMetadata map[string]string   `json:"required_metadata"`
	Environment      map[string][]string `json:"environment,omitempty"`
	ExpectationType  ExpectationType     `json:"expectation_type"`
	Gatherers        []string            `json:"gatherers"`
	SupportStatus    SupportStatus       `json:"support_status"`
	Remediation      string              `json:"remediation,omitempty"`
}

// MissingMetadata lists the required metadata keys the check does not declare
func (d CheckDefinition) MissingMetadata() []string {
	var missing []string
	for _, key := range RequiredMetadataKeys {
		if _, ok := d.RequiredMetadata[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}

// ManifestEntries lists the manifest entries the check's gatherers depend on
func (d CheckDefinition) ManifestEntries() []string {
	seen := make(map[string]struct{})
	var entries []string
	for _, gatherer := range d.Gatherers {
		for _, entry := range ManifestEntries(gatherer) {
			if _, dup := seen[entry]; dup {
				continue
			}
			seen[entry] = struct{}{}
			entries = append(entries, entry)
		}
	}
	return entries
}

// Classify builds a CheckDefinition from a raw catalog entry.
// Missing required metadata is not an error here; it is reported when the
// check is executed.
func Classify(raw map[string]interface{}) (CheckDefinition, error) {
	id, ok := LookupString(raw, "id")
	if !ok || id == "" {
		return CheckDefinition{}, errors.NewMetadataError("catalog entry has no id", nil)
	}

	expectation, err := classifyExpectation(id, raw)
	if err != nil {
		return CheckDefinition{}, err
	}

	def := CheckDefinition{
		ID:               id,
		RequiredMetadata: make(map[string]string),
		Environment:      make(map[string][]string),
		ExpectationType:  expectation,
	}
	def.Name, _ = LookupString(raw, "name")
	def.Description, _ = LookupString(raw, "description")
	def.Group, _ = LookupString(raw, "group")
	def.Remediation, _ = LookupString(raw, "remediation")

	for _, key := range RequiredMetadataKeys {
		value, found := Lookup(raw, "metadata."+key)
		if !found || value == nil {
			continue
		}
		def.RequiredMetadata[key] = strings.TrimSpace(fmt.Sprint(value))
	}

	for _, key := range EnvironmentKeys {
		if values, found := LookupStrings(raw, "metadata."+key); found {
			def.Environment[key] = values
		}
	}

	gatherers, _ := LookupStrings(raw, "facts[].gatherer")
	def.Gatherers = distinctSorted(gatherers)
	def.SupportStatus = SupportStatusOf(def.Gatherers)

	return def, nil
}

func classifyExpectation(id string, raw map[string]interface{}) (ExpectationType, error) {
	kinds, found := LookupStrings(raw, "expectations[].type")
	if !found || len(kinds) == 0 {
		return "", errors.NewMetadataError(fmt.Sprintf("could not retrieve expectation type of check %s", id), nil)
	}
	distinct := distinctSorted(kinds)
	if len(distinct) != 1 {
		return "", errors.NewMetadataError(
			fmt.Sprintf("unexpected expectation type for check %s: %s", id, strings.Join(distinct, ", ")), nil)
	}
	expectation, known := expectationKinds[distinct[0]]
	if !known {
		return "", errors.NewMetadataError(
			fmt.Sprintf("unexpected expectation type for check %s: %s", id, distinct[0]), nil)
	}
	return expectation, nil
}

// ClassifyCatalog classifies every entry. Entries that fail are left out
// and their errors returned alongside, so one bad entry does not hide the
// rest of the catalog.
func ClassifyCatalog(items []map[string]interface{}) ([]CheckDefinition, []error) {
	defs := make([]CheckDefinition, 0, len(items))
	var errs []error
	for _, item := range items {
		def, err := Classify(item)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		defs = append(defs, def)
	}
	return defs, errs
}

// Find returns the definition with the given id
func Find(defs []CheckDefinition, id string) (CheckDefinition, bool) {
	for _, def := range defs {
		if def.ID == id {
			return def, true
		}
	}
	return CheckDefinition{}, false
}

func distinctSorted(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}
