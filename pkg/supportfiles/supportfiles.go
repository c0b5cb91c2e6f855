// Package supportfiles reads supportconfig bundles and detects the host
// name and check environment of each host.
package supportfiles

import (
	"fmt"
	"path/filepath"

	"github.com/tcsc-project/tcsc/pkg/errors"
)

// Host is one scanned supportconfig
type Host struct {
	Hostname string `json:"hostname"`
	// Path is the supportconfig as it was read
	Path string `json:"supportconfig"`
	// Environment holds the detected values; undetected keys are absent
	Environment map[string]string `json:"environment"`
}

// Result of a scan. Hosts keeps the order of the input files.
type Result struct {
	Hosts  []Host  `json:"hosts"`
	Issues []error `json:"-"`
}

func (r *Result) IssueMessages() []string {
	messages := make([]string, 0, len(r.Issues))
	for _, issue := range r.Issues {
		messages = append(messages, issue.Error())
	}
	return messages
}

type Options struct {
	// HostRootFS prefixes all paths when tcsc runs in a container with
	// the host's root file system mounted there
	HostRootFS string
	// WorkDir resolves relative paths below HostRootFS
	WorkDir string
}

// Scan reads the supportconfigs. A single file is a host, several files
// are the nodes of a cluster. Failures of single files are collected as
// issues and do not stop the scan.
func Scan(files []string, opts Options) *Result {
	result := &Result{}
	cluster := len(files) > 1
	var provider, overallEnsa string
	seen := make(map[string]string)

	for _, file := range files {
		if opts.HostRootFS != "" {
			if filepath.IsAbs(file) {
				file = opts.HostRootFS + file
			} else {
				file = filepath.Join(opts.HostRootFS, opts.WorkDir, file)
			}
		}

		host, ensa, err := scanFile(file, cluster)
		if err != nil {
			result.Issues = append(result.Issues, err)
			continue
		}

		if previous, exists := seen[host.Hostname]; exists {
			result.Issues = append(result.Issues, errors.NewHostsError(
				fmt.Sprintf("%s already present in %q, is %q used twice?", host.Hostname, previous, file), nil))
			continue
		}
		if provider == "" {
			provider = host.Environment["provider"]
		}
		if provider != host.Environment["provider"] {
			result.Issues = append(result.Issues, errors.NewHostsError(fmt.Sprintf(
				"mixing providers is not allowed, previous supportconfigs have %q, but %q has %q",
				provider, file, host.Environment["provider"]), nil))
			continue
		}
		if ensa != "" && overallEnsa == "" {
			overallEnsa = ensa
		}

		seen[host.Hostname] = file
		result.Hosts = append(result.Hosts, host)
	}

	// only the node running the ERS instance knows the enqueue version
	if overallEnsa != "" {
		for _, host := range result.Hosts {
			if host.Environment["cluster_type"] == "ascs_ers" {
				host.Environment["ensa_version"] = overallEnsa
			}
		}
	}
	return result
}

func scanFile(file string, cluster bool) (Host, string, error) {
	b, err := readBundle(file)
	if err != nil {
		return Host{}, "", err
	}

	name, ok := hostname(b[BasicEnvironment])
	if !ok {
		return Host{}, "", errors.NewHostsError(fmt.Sprintf("no hostname found in %q", file), nil)
	}

	host := Host{
		Hostname:    name,
		Path:        file,
		Environment: map[string]string{"provider": provider(virtualization(b[BasicEnvironment]))},
	}

	if !cluster {
		return host, "", nil
	}
	root := cib(b[HA])
	if root == nil {
		return host, "", nil
	}

	packages := installedPackages(b[RPM], "SAPHanaSR", "SAPHanaSR-ScaleOut")
	for key, value := range clusterEnvironment(root, packages) {
		host.Environment[key] = value
	}

	ensa := ""
	if host.Environment["cluster_type"] == "ascs_ers" {
		ensa = ensaVersion(b[PluginHASAP])
		if ensa != "" {
			host.Environment["ensa_version"] = ensa
		}
	}
	return host, ensa, nil
}
