package operations

import (
	"sync"
	"time"

	"revforecast/internal/dataprocessing"
	"revforecast/pkg/contracts/domain"
)

// Pipeline stage names, in execution order
const (
	StageValidate  = "validate"
	StageLoad      = dataprocessing.StageLoad
	StageNormalize = dataprocessing.StageNormalize
	StageReconcile = dataprocessing.StageReconcile
	StageBuild     = dataprocessing.StageBuild
	StageForecast  = "forecast"
	StageInsights  = "insights"
)

// Stages lists every stage of a run in order
var Stages = []string{StageValidate, StageLoad, StageNormalize, StageReconcile, StageBuild, StageForecast, StageInsights}

// StepStatus represents the current status of a Step
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusActive    StepStatus = "active"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
)

// StepState represents the runtime state of a Step
type StepState struct {
	mu        sync.RWMutex
	Name      string
	Status    StepStatus
	StartTime *time.Time
	EndTime   *time.Time
	Error     error
}

// NewStepState creates a pending step
func NewStepState(name string) *StepState {
	return &StepState{
		Name:   name,
		Status: StepStatusPending,
	}
}

// Start marks the Step as active and sets the start time
func (s *StepState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.StartTime = &now
	s.Status = StepStatusActive
}

// Complete marks the Step as completed and sets the end time
func (s *StepState) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StepStatusCompleted
}

// Fail marks the Step as failed with the given error
func (s *StepState) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StepStatusFailed
	s.Error = err
}

// Duration returns the duration of the Step execution
func (s *StepState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.StartTime == nil {
		return 0
	}
	if s.EndTime != nil {
		return s.EndTime.Sub(*s.StartTime)
	}
	return time.Since(*s.StartTime)
}

// Report returns a serializable snapshot
func (s *StepState) Report() domain.StepReport {
	d := s.Duration()

	s.mu.RLock()
	defer s.mu.RUnlock()

	r := domain.StepReport{
		Name:     s.Name,
		Status:   string(s.Status),
		Duration: d,
	}
	if s.Error != nil {
		r.Error = s.Error.Error()
	}
	return r
}
