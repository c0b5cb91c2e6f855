package execution

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tcsc-project/tcsc/pkg/errors"
)

// Allowed values per environment parameter of an execution request
var environmentValues = map[string][]string{
	"provider":          {"azure", "aws", "gcp", "kvm", "nutanix", "vmware", "default"},
	"cluster_type":      {"hana_scale_up", "hana_scale_out", "ascs_ers"},
	"hana_scenario":     {"performance_optimized", "cost_optimized", "unknown"},
	"architecture_type": {"classic", "angi"},
	"ensa_version":      {"ensa1", "ensa2", "mixed_versions"},
	"filesystem_type":   {"resource_managed", "simple_mount", "mixed_fs_types"},
}

const DefaultProvider = "default"

// ParseEnvironment turns "key=value" pairs into a validated environment.
// The provider defaults to "default".
func ParseEnvironment(pairs []string) (map[string]string, error) {
	env, err := ParsePairs(pairs)
	if err != nil {
		return nil, err
	}
	if _, ok := env["provider"]; !ok {
		env["provider"] = DefaultProvider
	}
	if err := ValidateEnvironment(env); err != nil {
		return nil, err
	}
	return env, nil
}

// ParsePairs splits "key=value" pairs and checks keys and values, but
// not the dependencies between them.
func ParsePairs(pairs []string) (map[string]string, error) {
	env := make(map[string]string, len(pairs)+1)
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, errors.NewValidationError(
				fmt.Sprintf("environment parameters must have the form \"key=value\", but got: %s", pair), nil)
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		allowed, known := environmentValues[key]
		if !known {
			return nil, errors.NewValidationError(fmt.Sprintf("invalid environment parameter: %s", key), nil)
		}
		if !contains(allowed, value) {
			return nil, errors.NewValidationError(fmt.Sprintf("invalid value for %q: %s", key, value), nil)
		}
		env[key] = value
	}
	return env, nil
}

// ValidateEnvironment checks keys, values and the dependencies between
// cluster_type and the keys it requires.
func ValidateEnvironment(env map[string]string) error {
	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		allowed, known := environmentValues[key]
		if !known {
			return errors.NewValidationError(fmt.Sprintf("invalid environment parameter: %s", key), nil)
		}
		if !contains(allowed, env[key]) {
			return errors.NewValidationError(fmt.Sprintf("invalid value for %q: %s", key, env[key]), nil)
		}
	}

	requires := func(key, reason string) error {
		if _, ok := env[key]; !ok {
			return errors.NewValidationError(fmt.Sprintf("%q must be set, if \"cluster_type\" is %s", key, reason), nil)
		}
		return nil
	}
	switch env["cluster_type"] {
	case "hana_scale_up":
		if err := requires("hana_scenario", `"hana_scale_up"`); err != nil {
			return err
		}
		return requires("architecture_type", `"hana_scale_up" or "hana_scale_out"`)
	case "hana_scale_out":
		return requires("architecture_type", `"hana_scale_up" or "hana_scale_out"`)
	case "ascs_ers":
		if err := requires("ensa_version", `"ascs_ers"`); err != nil {
			return err
		}
		return requires("filesystem_type", `"ascs_ers"`)
	}
	return nil
}

func contains(list []string, item string) bool {
	for _, candidate := range list {
		if candidate == item {
			return true
		}
	}
	return false
}
