package hosts

import (
	"context"
	"fmt"
	"strings"

	"github.com/tcsc-project/tcsc/pkg/errors"
)

// Manifest states
const (
	ManifestOK     = "ok"
	ManifestFailed = "failed"
)

// GetManifest reads the manifest the host wrote while processing its
// supportfiles: which gatherer inputs could be produced. A missing or
// malformed manifest is a HostsError carrying the raw text.
func (m *Manager) GetManifest(ctx context.Context, h Host) (map[string]string, error) {
	result, err := m.runtime.Exec(ctx, h.ContainerID, []string{"cat", manifestPath})
	if err != nil {
		return nil, errors.NewHostsError(fmt.Sprintf("could not read manifest of %s", h.Name), err)
	}
	if result.ExitCode != 0 {
		return nil, errors.NewHostsError(strings.TrimSpace(result.Output()), nil).
			WithContext("host", h.Name)
	}
	return ParseManifest(result.Stdout)
}

// ParseManifest parses whitespace separated "name:ok|failed" entries
func ParseManifest(text string) (map[string]string, error) {
	manifest := make(map[string]string)
	for _, field := range strings.Fields(text) {
		parts := strings.Split(field, ":")
		if len(parts) != 2 || (parts[1] != ManifestOK && parts[1] != ManifestFailed) {
			return nil, errors.NewHostsError("could not parse manifest, invalid format", nil).
				WithContext("entry", field)
		}
		manifest[parts[0]] = parts[1]
	}
	return manifest, nil
}
