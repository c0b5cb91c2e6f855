package catalog

import "strings"

// Gatherers the host containers can serve
var supportedGatherers = newSet(
	"cibadmin", "cibadmin@v1",
	"corosync.conf", "corosync.conf@v1",
	"package_version", "package_version@v1",
	"sbd_config", "sbd_config@v1",
	"sbd_dump", "sbd_dump@v1",
	"sap_profiles", "sap_profiles@v1",
	"dir_scan", "dir_scan@v1",
	"sapservices", "sapservices@v1",
	"saptune", "saptune@v1",
	"fstab", "fstab@v1",
	"os-release", "os-release@v1",
	"sysctl", "sysctl@v1",
)

// Gatherers known to exist, whether supported or not
var knownGatherers = newSet(
	"cibadmin", "cibadmin@v1",
	"corosync-cmapctl", "corosync-cmapctl@v1",
	"corosync.conf", "corosync.conf@v1",
	"hosts", "hosts@v1",
	"package_version", "package_version@v1",
	"saphostctrl", "saphostctrl@v1",
	"sbd_config", "sbd_config@v1",
	"sbd_dump", "sbd_dump@v1",
	"systemd", "systemd@v1", "systemd@v2",
	"verify_password", "verify_password@v1",
	"ascsers_cluster", "ascsers_cluster@v1",
	"sap_profiles", "sap_profiles@v1",
	"passwd", "passwd@v1",
	"groups", "groups@v1",
	"dir_scan", "dir_scan@v1",
	"sapservices", "sapservices@v1",
	"saptune", "saptune@v1",
	"sapcontrol", "sapcontrol@v1",
	"fstab", "fstab@v1",
	"disp+work", "disp+work@v1",
	"os-release", "os-release@v1",
	"mount_info", "mount_info@v1",
	"products", "products@v1",
	"sapinstance_hostname_resolver", "sapinstance_hostname_resolver@v1",
	"sysctl", "sysctl@v1",
)

var gathererManifest = map[string][]string{
	"cibadmin":        {"pacemaker_files"},
	"corosync.conf":   {"corosync.conf"},
	"hosts":           {"hosts"},
	"package_version": {"rpm_packages"},
	"saphostctrl":     {"saphostctrl"},
	"sbd_config":      {"sysconfig_sbd"},
	"sbd_dump":        {"sbd_dumps"},
	"sap_profiles":    {"usr_sap"},
	"dir_scan":        {"usr_sap", "multi-user.target.wants"},
	"sapservices":     {"sapservices"},
	"saptune":         {"saptune"},
	"fstab":           {"fstab"},
	"disp+work":       {"disp+work"},
	"os-release":      {"os-release"},
	"sysctl":          {"sysctl"},
}

// ManifestEntries returns the manifest entries a gatherer depends on.
// The version suffix ("@v1") is ignored; unknown gatherers yield nil.
func ManifestEntries(gatherer string) []string {
	name, _, _ := strings.Cut(gatherer, "@")
	entries, ok := gathererManifest[name]
	if !ok {
		return nil
	}
	out := make([]string, len(entries))
	copy(out, entries)
	return out
}

// SupportStatusOf classifies a set of gatherers against the allowlists.
// A check without gatherers needs nothing from the host and is supported.
func SupportStatusOf(gatherers []string) SupportStatus {
	if supportedGatherers.containsAll(gatherers) {
		return SupportSupported
	}
	if knownGatherers.containsAll(gatherers) {
		return SupportUnsupported
	}
	return SupportUnknown
}

type set map[string]struct{}

func newSet(items ...string) set {
	s := make(set, len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}

func (s set) containsAll(items []string) bool {
	for _, item := range items {
		if _, ok := s[item]; !ok {
			return false
		}
	}
	return true
}
