package wanda

import (
	"encoding/json"
	"fmt"

	"github.com/tcsc-project/tcsc/pkg/errors"
)

const (
	CatalogPath        = "/api/checks/catalog"
	ExecutionsPath     = "/api/checks/executions"
	StartExecutionPath = "/api/checks/executions/start"
	HealthPath         = "/api/healthz"
	ReadinessPath      = "/api/readyz"
	SessionPath        = "/api/session"
)

// ExecutionPath is the endpoint of a single execution
func ExecutionPath(executionID string) string {
	return ExecutionsPath + "/" + executionID
}

// Execution statuses reported by the service
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
)

// Catalog is the check catalog. Entries are kept as decoded JSON and
// classified by the catalog package.
type Catalog struct {
	Items []map[string]interface{} `json:"items"`
}

type Target struct {
	AgentID string   `json:"agent_id"`
	Checks  []string `json:"checks"`
}

// ExecutionRequest is the body of a start request
type ExecutionRequest struct {
	Env         map[string]string `json:"env"`
	ExecutionID string            `json:"execution_id"`
	GroupID     string            `json:"group_id"`
	Targets     []Target          `json:"targets"`
	TargetType  string            `json:"target_type"`
}

type Fact struct {
	Name    string  `json:"name,omitempty"`
	Message *string `json:"message,omitempty"`
	Type    string  `json:"type,omitempty"`
}

type ExpectationEvaluation struct {
	Name           string  `json:"name,omitempty"`
	FailureMessage *string `json:"failure_message,omitempty"`
}

type AgentCheckResult struct {
	AgentID                string                  `json:"agent_id"`
	Message                *string                 `json:"message,omitempty"`
	Type                   string                  `json:"type,omitempty"`
	Facts                  []Fact                  `json:"facts"`
	ExpectationEvaluations []ExpectationEvaluation `json:"expectation_evaluations,omitempty"`
}

type CheckResultBlock struct {
	CheckID            string             `json:"check_id"`
	Result             string             `json:"result"`
	AgentsCheckResults []AgentCheckResult `json:"agents_check_results"`
}

// Execution is a job as returned by the executions endpoints
type Execution struct {
	ExecutionID  string             `json:"execution_id"`
	GroupID      string             `json:"group_id"`
	Status       string             `json:"status"`
	StartedAt    string             `json:"started_at"`
	CompletedAt  string             `json:"completed_at"`
	Result       string             `json:"result,omitempty"`
	Targets      []Target           `json:"targets"`
	CheckResults []CheckResultBlock `json:"check_results"`
}

type ExecutionList struct {
	Items []Execution `json:"items"`
}

// apiError is one entry of the "errors" list of an error response
type apiError struct {
	Title  string      `json:"title"`
	Detail string      `json:"detail"`
	Source interface{} `json:"source"`
}

type errorDocument struct {
	Errors []apiError `json:"errors"`
	Error  *struct {
		Detail string `json:"detail"`
	} `json:"error"`
}

func parseErrorDocument(body []byte) errorDocument {
	var doc errorDocument
	_ = json.Unmarshal(body, &doc)
	return doc
}

func (e apiError) subError() errors.SubError {
	sub := errors.SubError{Title: e.Title, Detail: e.Detail}
	switch src := e.Source.(type) {
	case nil:
	case string:
		sub.Source = src
	default:
		if b, err := json.Marshal(src); err == nil {
			sub.Source = string(b)
		} else {
			sub.Source = fmt.Sprint(src)
		}
	}
	return sub
}
