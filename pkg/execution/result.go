package execution

import (
	"fmt"
	"strings"

	"github.com/tcsc-project/tcsc/pkg/errors"
	"github.com/tcsc-project/tcsc/pkg/wanda"
)

// Result values reported by the check service
const (
	ResultPassing  = "passing"
	ResultWarning  = "warning"
	ResultCritical = "critical"
	ResultError    = "error"
)

// CheckResult is the evaluation of one check on one agent
type CheckResult struct {
	CheckID   string   `json:"check"`
	AgentID   string   `json:"agent_id"`
	Result    string   `json:"result"`
	JobID     string   `json:"execution_id,omitempty"`
	Messages  []string `json:"messages,omitempty"`
	ErrorType string   `json:"type,omitempty"`
}

// MessageText joins the messages for display
func (r CheckResult) MessageText() string {
	return strings.Join(r.Messages, "; ")
}

// Normalize turns a completed execution into one result per agent, in the
// order the service lists the agents. Brief drops job id, messages and
// error type.
func Normalize(execution *wanda.Execution, brief bool) ([]CheckResult, error) {
	if len(execution.CheckResults) == 0 {
		return nil, errors.NewResponseError(
			fmt.Sprintf("execution %s has no check results", execution.ExecutionID), nil)
	}
	// one check per job, so there is exactly one block
	block := execution.CheckResults[0]

	results := make([]CheckResult, 0, len(block.AgentsCheckResults))
	for _, agent := range block.AgentsCheckResults {
		result := CheckResult{
			CheckID: block.CheckID,
			AgentID: agent.AgentID,
			Result:  block.Result,
		}
		if !brief {
			result.JobID = execution.ExecutionID
			result.Messages = collectMessages(agent)
			result.ErrorType = agent.Type
		}
		results = append(results, result)
	}
	return results, nil
}

func collectMessages(agent wanda.AgentCheckResult) []string {
	var messages []string
	if agent.Message != nil {
		messages = append(messages, *agent.Message)
	}
	for _, fact := range agent.Facts {
		if fact.Message != nil {
			messages = append(messages, *fact.Message)
		}
	}
	for _, evaluation := range agent.ExpectationEvaluations {
		if evaluation.FailureMessage != nil {
			messages = append(messages, *evaluation.FailureMessage)
		}
	}
	return messages
}

// FormatResults renders results as key="value" lines
func FormatResults(results []CheckResult) string {
	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "check=%q agent_id=%q result=%q", r.CheckID, r.AgentID, r.Result)
		if r.JobID != "" {
			fmt.Fprintf(&b, " execution_id=%q", r.JobID)
		}
		if len(r.Messages) > 0 {
			fmt.Fprintf(&b, " messages=%q", r.MessageText())
		}
		if r.ErrorType != "" {
			fmt.Fprintf(&b, " type=%q", r.ErrorType)
		}
		b.WriteString("\n")
	}
	return b.String()
}
