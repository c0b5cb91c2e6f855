package hosts

import (
	"strings"

	"github.com/google/uuid"
)

// agentNamespace is the namespace the agent id is derived in
var agentNamespace = uuid.MustParse("fb92284e-aa5e-47f6-a883-bf9469e7a0dc")

// GenerateIDs returns a new machine id in D-Bus format (32 lowercase hex
// digits) and the agent id derived from it.
func GenerateIDs() (string, string) {
	machineID := strings.ReplaceAll(uuid.NewString(), "-", "")
	return machineID, AgentID(machineID)
}

// AgentID derives the agent id of a host from its machine id
func AgentID(machineID string) string {
	return uuid.NewSHA1(agentNamespace, []byte(machineID)).String()
}
