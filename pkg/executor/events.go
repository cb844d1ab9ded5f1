// Package executor drives a fully template-resolved pipeline document
// through its stage/job/step graph: dependency and condition checks,
// runner dispatch, continue-on-error and always() recovery, and status
// aggregation, emitting a typed event stream as it goes.
package executor

import "github.com/azlocal/pipeline/pkg/secrets"

// EventKind enumerates the event stream's variants.
type EventKind string

const (
	EventPipelineStarted EventKind = "PipelineStarted"
	EventPipelineCompleted EventKind = "PipelineCompleted"
	EventStageStarted    EventKind = "StageStarted"
	EventStageCompleted  EventKind = "StageCompleted"
	EventStageSkipped    EventKind = "StageSkipped"
	EventJobStarted      EventKind = "JobStarted"
	EventJobCompleted    EventKind = "JobCompleted"
	EventJobSkipped      EventKind = "JobSkipped"
	EventStepStarted     EventKind = "StepStarted"
	EventStepOutput      EventKind = "StepOutput"
	EventStepCompleted   EventKind = "StepCompleted"
	EventStepSkipped     EventKind = "StepSkipped"
	EventVariableSet     EventKind = "VariableSet"
	EventLog             EventKind = "Log"
	EventError           EventKind = "Error"
)

// LogLevel classifies a Log event.
type LogLevel string

const (
	LogDebug   LogLevel = "Debug"
	LogInfo    LogLevel = "Info"
	LogWarning LogLevel = "Warning"
	LogError   LogLevel = "Error"
)

// Event is one entry of the pipeline's event stream. Only the fields
// relevant to Kind are populated; the rest are zero values.
type Event struct {
	Kind EventKind

	Name        string
	TotalStages int
	Success     bool
	Duration    float64

	Stage          string
	DisplayName    string
	TotalJobs      int
	Status         string
	Reason         string

	Job            string
	MatrixInstance string
	TotalSteps     int

	Step     string
	StepIndex int
	Output    string
	IsError   bool
	ExitCode  *int

	VariableName  string
	VariableValue string
	IsOutput      bool
	IsSecret      bool

	Level   LogLevel
	Message string
}

// Sink receives emitted events. A nil Sink silently discards events.
type Sink func(Event)

// Emitter wraps a Sink with secret redaction of anything that carries
// free-form text (step output and log messages).
type Emitter struct {
	sink     Sink
	redactor *secrets.Redactor
}

// NewEmitter builds an Emitter. redactor may be nil, in which case no
// redaction is applied.
func NewEmitter(sink Sink, redactor *secrets.Redactor) *Emitter {
	return &Emitter{sink: sink, redactor: redactor}
}

func (e *Emitter) emit(ev Event) {
	if e.sink == nil {
		return
	}
	e.sink(ev)
}

func (e *Emitter) redact(s string) string {
	if e.redactor == nil {
		return s
	}
	return e.redactor.Apply(s)
}

func (e *Emitter) PipelineStarted(name string, totalStages int) {
	e.emit(Event{Kind: EventPipelineStarted, Name: name, TotalStages: totalStages})
}

func (e *Emitter) PipelineCompleted(name string, success bool, duration float64) {
	e.emit(Event{Kind: EventPipelineCompleted, Name: name, Success: success, Duration: duration})
}

func (e *Emitter) StageStarted(stage, displayName string, totalJobs int) {
	e.emit(Event{Kind: EventStageStarted, Stage: stage, DisplayName: displayName, TotalJobs: totalJobs})
}

func (e *Emitter) StageCompleted(stage, status string, duration float64) {
	e.emit(Event{Kind: EventStageCompleted, Stage: stage, Status: status, Duration: duration})
}

func (e *Emitter) StageSkipped(stage, reason string) {
	e.emit(Event{Kind: EventStageSkipped, Stage: stage, Reason: reason})
}

func (e *Emitter) JobStarted(stage, job, displayName, matrixInstance string, totalSteps int) {
	e.emit(Event{Kind: EventJobStarted, Stage: stage, Job: job, DisplayName: displayName, MatrixInstance: matrixInstance, TotalSteps: totalSteps})
}

func (e *Emitter) JobCompleted(stage, job, matrixInstance, status string, duration float64) {
	e.emit(Event{Kind: EventJobCompleted, Stage: stage, Job: job, MatrixInstance: matrixInstance, Status: status, Duration: duration})
}

func (e *Emitter) JobSkipped(stage, job, reason string) {
	e.emit(Event{Kind: EventJobSkipped, Stage: stage, Job: job, Reason: reason})
}

func (e *Emitter) StepStarted(stage, job, step, displayName string, stepIndex int) {
	e.emit(Event{Kind: EventStepStarted, Stage: stage, Job: job, Step: step, DisplayName: displayName, StepIndex: stepIndex})
}

func (e *Emitter) StepOutput(stage, job, step string, stepIndex int, output string, isErr bool) {
	e.emit(Event{Kind: EventStepOutput, Stage: stage, Job: job, Step: step, StepIndex: stepIndex, Output: e.redact(output), IsError: isErr})
}

func (e *Emitter) StepCompleted(stage, job, step, status string, stepIndex int, duration float64, exitCode *int) {
	e.emit(Event{Kind: EventStepCompleted, Stage: stage, Job: job, Step: step, Status: status, StepIndex: stepIndex, Duration: duration, ExitCode: exitCode})
}

func (e *Emitter) StepSkipped(stage, job, step, reason string, stepIndex int) {
	e.emit(Event{Kind: EventStepSkipped, Stage: stage, Job: job, Step: step, Reason: reason, StepIndex: stepIndex})
}

func (e *Emitter) VariableSet(stage, job, name, value string, isOutput, isSecret bool) {
	v := value
	if isSecret {
		v = ""
	}
	e.emit(Event{Kind: EventVariableSet, Stage: stage, Job: job, VariableName: name, VariableValue: v, IsOutput: isOutput, IsSecret: isSecret})
}

func (e *Emitter) Log(level LogLevel, message, stage, job string) {
	e.emit(Event{Kind: EventLog, Level: level, Message: e.redact(message), Stage: stage, Job: job})
}

func (e *Emitter) Error(message, stage, job string, stepIndex int) {
	e.emit(Event{Kind: EventError, Message: e.redact(message), Stage: stage, Job: job, StepIndex: stepIndex})
}
