package supportfiles

import (
	"encoding/xml"
	"regexp"
	"strings"
)

// hostname returns the node name of the "uname -a" output
func hostname(basicEnv []string) (string, bool) {
	for i, line := range basicEnv {
		if line != "# /bin/uname -a" || i+1 >= len(basicEnv) {
			continue
		}
		fields := strings.Split(basicEnv[i+1], " ")
		if len(fields) < 2 || fields[1] == "" {
			return "", false
		}
		return fields[1], true
	}
	return "", false
}

// virtualization parses the "# Virtualization" block into key/value pairs
func virtualization(basicEnv []string) map[string]string {
	block := make(map[string]string)
	for _, line := range section(basicEnv, "# Virtualization") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		block[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return block
}

// provider maps the virtualization block to an environment provider
func provider(virt map[string]string) string {
	manufacturer := virt["Manufacturer"]
	hardware := virt["Hardware"]
	switch {
	case manufacturer == "Amazon EC2":
		return "aws"
	case manufacturer == "Microsoft Corporation" && hardware == "Virtual Machine":
		return "azure"
	case manufacturer == "Google" && hardware == "Google Compute Engine":
		return "gcp"
	case manufacturer == "VMware, Inc." && strings.HasPrefix(hardware, "VMware") &&
		virt["Hypervisor"] == "VMware (hardware platform)" &&
		virt["Identity"] == "Virtual Machine (hardware platform)":
		return "vmware"
	case manufacturer == "QEMU" && virt["Hypervisor"] == "KVM":
		return "kvm"
	default:
		return "default"
	}
}

// installedPackages returns the names of wanted that are installed
func installedPackages(rpm []string, wanted ...string) map[string]bool {
	lines := section(rpm, "# rpm -qa --queryformat")
	installed := make(map[string]bool)
	// the first line is the column header
	for i, line := range lines {
		fields := strings.Fields(line)
		if i == 0 || len(fields) == 0 {
			continue
		}
		installed[fields[0]] = true
	}
	found := make(map[string]bool)
	for _, name := range wanted {
		if installed[name] {
			found[name] = true
		}
	}
	return found
}

var getProcessList = regexp.MustCompile(`^# /bin/su - \w+ -c 'sapcontrol -nr [0-9]+ -function GetProcessList'`)

// instanceProcesses returns the GetProcessList outputs, one per instance
func instanceProcesses(pluginHASAP []string) [][]string {
	var instances [][]string
	var instance []string
	inside := false
	for _, line := range pluginHASAP {
		switch {
		case inside && strings.HasPrefix(line, "#==["):
			inside = false
			instances = append(instances, instance)
			instance = nil
		case !inside && getProcessList.MatchString(line):
			inside = true
		case inside:
			instance = append(instance, strings.TrimSpace(line))
		}
	}
	return instances
}

func ensaVersion(pluginHASAP []string) string {
	for _, processes := range instanceProcesses(pluginHASAP) {
		for _, line := range processes {
			if strings.HasPrefix(line, "enrepserver, EnqueueReplicator,") {
				return "ensa1"
			}
			if strings.HasPrefix(line, "enq_replicator, Enqueue Replicator 2,") {
				return "ensa2"
			}
		}
	}
	return ""
}

type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []*xmlNode `xml:",any"`
}

func (n *xmlNode) attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func (n *xmlNode) child(name string) *xmlNode {
	for _, c := range n.Children {
		if c.XMLName.Local == name {
			return c
		}
	}
	return nil
}

// find returns all descendants of n (not n itself) matching match
func (n *xmlNode) find(match func(*xmlNode) bool) []*xmlNode {
	var out []*xmlNode
	for _, c := range n.Children {
		if match(c) {
			out = append(out, c)
		}
		out = append(out, c.find(match)...)
	}
	return out
}

// parents returns the distinct parents of the descendants matching match
func (n *xmlNode) parents(match func(*xmlNode) bool) []*xmlNode {
	var out []*xmlNode
	for _, c := range n.Children {
		if match(c) {
			out = append(out, n)
			break
		}
	}
	for _, c := range n.Children {
		out = append(out, c.parents(match)...)
	}
	return out
}

func element(name string, attrs ...string) func(*xmlNode) bool {
	return func(n *xmlNode) bool {
		if n.XMLName.Local != name {
			return false
		}
		for i := 0; i+1 < len(attrs); i += 2 {
			if n.attr(attrs[i]) != attrs[i+1] {
				return false
			}
		}
		return true
	}
}

// cib extracts the cluster information base from ha.txt
func cib(ha []string) *xmlNode {
	lines := section(ha, "# /var/lib/pacemaker/cib/cib.xml")
	if len(lines) == 0 {
		return nil
	}
	var root xmlNode
	if err := xml.Unmarshal([]byte(strings.Join(lines, "\n")), &root); err != nil {
		return nil
	}
	return &root
}

// clusterEnvironment detects cluster_type, architecture_type,
// filesystem_type and hana_scenario from the CIB.
func clusterEnvironment(root *xmlNode, packages map[string]bool) map[string]string {
	env := make(map[string]string)

	if len(root.find(element("cluster_property_set", "id", "SAPHanaSR"))) > 0 {
		switch {
		case packages["SAPHanaSR-ScaleOut"]:
			env["cluster_type"] = "hana_scale_out"
			env["architecture_type"] = "classic"
		default:
			var nvpairs []*xmlNode
			if crm := root.child("configuration"); crm != nil {
				if crm = crm.child("crm_config"); crm != nil {
					for _, set := range crm.Children {
						if element("cluster_property_set", "id", "SAPHanaSR")(set) {
							nvpairs = append(nvpairs, set.find(element("nvpair"))...)
						}
					}
				}
			}
			scaleUp, scaleOut := false, false
			for _, nv := range nvpairs {
				scaleUp = scaleUp || nv.attr("value") == "ScaleUp"
				scaleOut = scaleOut || nv.attr("value") == "ScaleOut"
			}
			switch {
			case scaleUp:
				env["cluster_type"] = "hana_scale_up"
				env["architecture_type"] = "angi"
			case scaleOut:
				env["cluster_type"] = "hana_scale_out"
				env["architecture_type"] = "angi"
			default:
				env["cluster_type"] = "hana_scale_up"
				env["architecture_type"] = "classic"
			}
		}
	} else {
		env["cluster_type"] = "ascs_ers"
	}

	if env["cluster_type"] == "ascs_ers" {
		groups := root.find(element("group"))
		withFilesystem := root.parents(element("primitive", "type", "Filesystem"))
		switch {
		case len(withFilesystem) == 0:
			env["filesystem_type"] = "simple_mount"
		case len(groups) == len(withFilesystem):
			env["filesystem_type"] = "resource_managed"
		default:
			env["filesystem_type"] = "mixed_fs_types"
		}
	}

	if env["cluster_type"] == "hana_scale_up" {
		env["hana_scenario"] = "performance_optimized"
		if resources := root.child("configuration"); resources != nil {
			if resources = resources.child("resources"); resources != nil {
				if len(resources.find(element("primitive", "type", "SAPInstance"))) > 0 {
					env["hana_scenario"] = "cost_optimized"
				}
			}
		}
	}

	return env
}
