package execution

import (
	"fmt"
	"time"

	"github.com/tcsc-project/tcsc/pkg/wanda"
)

type JobState string

const (
	JobSubmitted          JobState = "submitted"
	JobAwaitingVisibility JobState = "awaiting_visibility"
	JobRunning            JobState = "running"
	JobCompleted          JobState = "completed"
	JobFailed             JobState = "failed"
	JobTimedOut           JobState = "timed_out"
)

func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobTimedOut
}

// Job is one execution submitted to the check service. It is owned by
// the loop polling it and discarded once terminal.
type Job struct {
	ID          string
	GroupID     string
	CheckID     string
	TargetType  string
	Environment map[string]string
	Targets     []wanda.Target
	SubmittedAt time.Time
	State       JobState
}

func (j *Job) request() wanda.ExecutionRequest {
	return wanda.ExecutionRequest{
		Env:         j.Environment,
		ExecutionID: j.ID,
		GroupID:     j.GroupID,
		Targets:     j.Targets,
		TargetType:  j.TargetType,
	}
}

// AgentIDs returns the agents targeted by the job in target order
func (j *Job) AgentIDs() []string {
	ids := make([]string, 0, len(j.Targets))
	for _, target := range j.Targets {
		ids = append(ids, target.AgentID)
	}
	return ids
}

func (j *Job) String() string {
	return fmt.Sprintf("execution %s (check %s, %d agent(s))", j.ID, j.CheckID, len(j.Targets))
}

var allowedTransitions = map[JobState][]JobState{
	JobSubmitted:          {JobAwaitingVisibility, JobFailed},
	JobAwaitingVisibility: {JobAwaitingVisibility, JobRunning, JobCompleted, JobFailed, JobTimedOut},
	JobRunning:            {JobRunning, JobAwaitingVisibility, JobCompleted, JobFailed, JobTimedOut},
}

func canTransition(from, to JobState) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
