// Package pipeline defines the Go struct types for the pipeline YAML
// document and provides YAML parsing, normalization, and
// three-phase validation.
package pipeline

// Document is the top-level pipeline definition.
type Document struct {
	Name      string            `yaml:"name,omitempty"      json:"name,omitempty"`
	Trigger   interface{}       `yaml:"trigger,omitempty"   json:"trigger,omitempty"`
	PR        interface{}       `yaml:"pr,omitempty"        json:"pr,omitempty"`
	Schedules []Schedule        `yaml:"schedules,omitempty" json:"schedules,omitempty"`
	Resources *Resources        `yaml:"resources,omitempty" json:"resources,omitempty"`
	Variables []Variable        `yaml:"variables,omitempty" json:"variables,omitempty"`
	Parameters []Parameter      `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Pool      interface{}       `yaml:"pool,omitempty"      json:"pool,omitempty"`
	Extends   *Extends          `yaml:"extends,omitempty"   json:"extends,omitempty"`
	LockBehavior string         `yaml:"lockBehavior,omitempty" json:"lockBehavior,omitempty" jsonschema:"enum=runLatest,enum=sequential"`

	Stages []Stage `yaml:"stages,omitempty" json:"stages,omitempty"`
	Jobs   []Job   `yaml:"jobs,omitempty"   json:"jobs,omitempty"`
	Steps  []Step  `yaml:"steps,omitempty"  json:"steps,omitempty"`

	// HasTemplateDirectives is set by Load when a sequence contained
	// ${{ if/each }} entries dropped during the tolerant schema-time
	// pass, signalling the template engine must re-parse the raw tree.
	HasTemplateDirectives bool `yaml:"-" json:"-"`
}

// Schedule is an opaque cron trigger; only the cron expression itself
// is validated (see ValidateSchedules), the rest is passed through.
type Schedule struct {
	Cron        string   `yaml:"cron"                  json:"cron"                  jsonschema:"required"`
	DisplayName string   `yaml:"displayName,omitempty" json:"displayName,omitempty"`
	Branches    Filter   `yaml:"branches,omitempty"    json:"branches,omitempty"`
	Always      bool     `yaml:"always,omitempty"      json:"always,omitempty"`
}

// Filter is the include/exclude branch/path filter shape shared by
// trigger, pr, and schedule blocks.
type Filter struct {
	Include []string `yaml:"include,omitempty" json:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty" json:"exclude,omitempty"`
}

// Resources references external pipelines, repositories, containers.
type Resources struct {
	Pipelines    []map[string]interface{} `yaml:"pipelines,omitempty"    json:"pipelines,omitempty"`
	Repositories []map[string]interface{} `yaml:"repositories,omitempty" json:"repositories,omitempty"`
	Containers   []map[string]interface{} `yaml:"containers,omitempty"   json:"containers,omitempty"`
}

// Extends references a parent template that this document's stages/
// jobs/steps are merged into.
type Extends struct {
	Template   string                 `yaml:"template" json:"template" jsonschema:"required"`
	Parameters map[string]interface{} `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// DependsOnKind classifies the resolved shape of a depends_on field.
type DependsOnKind int

const (
	DependsOnDefault DependsOnKind = iota
	DependsOnNone
	DependsOnSingle
	DependsOnMultiple
)

// DependsOn carries the classified kind and target names of a
// depends_on value, as computed by ClassifyDependsOn (called from
// ResolveStageDeps/ResolveJobDeps).
type DependsOn struct {
	Kind  DependsOnKind
	Names []string
}

// Stage is one phase of a pipeline, containing an ordered set of jobs.
type Stage struct {
	Stage       string        `yaml:"stage,omitempty"       json:"stage,omitempty"`
	DisplayName string        `yaml:"displayName,omitempty" json:"displayName,omitempty"`
	DependsOn   interface{}   `yaml:"dependsOn,omitempty"   json:"dependsOn,omitempty"`
	Condition   string        `yaml:"condition,omitempty"   json:"condition,omitempty"`
	Variables   []Variable    `yaml:"variables,omitempty"   json:"variables,omitempty"`
	Jobs        []Job         `yaml:"jobs,omitempty"        json:"jobs,omitempty"`
	Template    string        `yaml:"template,omitempty"    json:"template,omitempty"`
	Parameters  map[string]interface{} `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Pool        interface{}   `yaml:"pool,omitempty"        json:"pool,omitempty"`

	resolvedDeps *DependsOn `yaml:"-" json:"-"`
}

// Job is a unit of sequential step execution, optionally matrix/
// parallel-expanded by Strategy.
type Job struct {
	Job         string                 `yaml:"job,omitempty"         json:"job,omitempty"`
	Deployment  string                 `yaml:"deployment,omitempty"  json:"deployment,omitempty"`
	DisplayName string                 `yaml:"displayName,omitempty" json:"displayName,omitempty"`
	DependsOn   interface{}            `yaml:"dependsOn,omitempty"   json:"dependsOn,omitempty"`
	Condition   string                 `yaml:"condition,omitempty"   json:"condition,omitempty"`
	Strategy    *Strategy              `yaml:"strategy,omitempty"    json:"strategy,omitempty"`
	Pool        interface{}            `yaml:"pool,omitempty"        json:"pool,omitempty"`
	Container   interface{}            `yaml:"container,omitempty"   json:"container,omitempty"`
	Services    map[string]interface{} `yaml:"services,omitempty"    json:"services,omitempty"`
	Variables   []Variable             `yaml:"variables,omitempty"   json:"variables,omitempty"`
	Steps       []Step                 `yaml:"steps,omitempty"       json:"steps,omitempty"`
	ContinueOnError interface{}        `yaml:"continueOnError,omitempty" json:"continueOnError,omitempty"`
	Template    string                 `yaml:"template,omitempty"    json:"template,omitempty"`
	Parameters  map[string]interface{} `yaml:"parameters,omitempty"  json:"parameters,omitempty"`
	Environment string                 `yaml:"environment,omitempty" json:"environment,omitempty"`

	resolvedDeps *DependsOn `yaml:"-" json:"-"`
}

// Name returns Job or Deployment, whichever is set — the two act as
// the same identifier kind for graph purposes.
func (j Job) Name() string {
	if j.Job != "" {
		return j.Job
	}
	return j.Deployment
}

// Strategy controls matrix/parallel job instance expansion.
type Strategy struct {
	Matrix      map[string]map[string]string `yaml:"matrix,omitempty"      json:"matrix,omitempty"`
	MatrixExpr  string                       `yaml:"-"                     json:"-"`
	Parallel    int                          `yaml:"parallel,omitempty"    json:"parallel,omitempty"`
	MaxParallel int                          `yaml:"maxParallel,omitempty" json:"maxParallel,omitempty"`
}

// Step is a single executable action within a job. Exactly one of the
// action fields should be set; Action reports which.
type Step struct {
	Name                   string            `yaml:"name,omitempty"                   json:"name,omitempty"`
	DisplayName            string            `yaml:"displayName,omitempty"             json:"displayName,omitempty"`
	Condition              string            `yaml:"condition,omitempty"               json:"condition,omitempty"`
	ContinueOnError        interface{}       `yaml:"continueOnError,omitempty"         json:"continueOnError,omitempty"`
	Enabled                *bool             `yaml:"enabled,omitempty"                 json:"enabled,omitempty"`
	TimeoutInMinutes       int               `yaml:"timeoutInMinutes,omitempty"        json:"timeoutInMinutes,omitempty"`
	RetryCountOnTaskFailure int              `yaml:"retryCountOnTaskFailure,omitempty" json:"retryCountOnTaskFailure,omitempty"`
	Env                    map[string]string `yaml:"env,omitempty"                     json:"env,omitempty"`

	Script       string                 `yaml:"script,omitempty"       json:"script,omitempty"`
	Bash         string                 `yaml:"bash,omitempty"         json:"bash,omitempty"`
	Pwsh         string                 `yaml:"pwsh,omitempty"         json:"pwsh,omitempty"`
	PowerShell   string                 `yaml:"powershell,omitempty"   json:"powershell,omitempty"`
	Task         string                 `yaml:"task,omitempty"         json:"task,omitempty"`
	Inputs       map[string]interface{} `yaml:"inputs,omitempty"       json:"inputs,omitempty"`
	Checkout     string                 `yaml:"checkout,omitempty"     json:"checkout,omitempty"`
	Template     string                 `yaml:"template,omitempty"     json:"template,omitempty"`
	TemplateParams map[string]interface{} `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Download     interface{}            `yaml:"download,omitempty"    json:"download,omitempty"`
	Publish      string                 `yaml:"publish,omitempty"     json:"publish,omitempty"`
	GetPackage   string                 `yaml:"getPackage,omitempty"  json:"getPackage,omitempty"`
	ReviewApp    interface{}            `yaml:"reviewApp,omitempty"   json:"reviewApp,omitempty"`

	WorkingDirectory    string `yaml:"workingDirectory,omitempty"    json:"workingDirectory,omitempty"`
	FailOnStderr        bool   `yaml:"failOnStderr,omitempty"        json:"failOnStderr,omitempty"`
	ErrorActionPreference string `yaml:"errorActionPreference,omitempty" json:"errorActionPreference,omitempty"`
}

// ActionKind enumerates the mutually-exclusive step action variants.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionScript
	ActionBash
	ActionPwsh
	ActionPowerShell
	ActionTask
	ActionCheckout
	ActionTemplate
	ActionDownload
	ActionPublish
	ActionGetPackage
	ActionReviewApp
)

// Action classifies which action field is populated.
func (s Step) Action() ActionKind {
	switch {
	case s.Script != "":
		return ActionScript
	case s.Bash != "":
		return ActionBash
	case s.Pwsh != "":
		return ActionPwsh
	case s.PowerShell != "":
		return ActionPowerShell
	case s.Task != "":
		return ActionTask
	case s.Checkout != "":
		return ActionCheckout
	case s.Template != "":
		return ActionTemplate
	case s.Download != nil:
		return ActionDownload
	case s.Publish != "":
		return ActionPublish
	case s.GetPackage != "":
		return ActionGetPackage
	case s.ReviewApp != nil:
		return ActionReviewApp
	default:
		return ActionNone
	}
}

// VariableKind classifies a Variable entry.
type VariableKind int

const (
	VariableKeyValue VariableKind = iota
	VariableGroup
	VariableTemplate
)

// Variable is one entry of a variables: block. Exactly one of Name+
// Value, Group, or Template is populated; Kind reports which.
type Variable struct {
	Name     string                 `yaml:"name,omitempty"     json:"name,omitempty"`
	Value    string                 `yaml:"value,omitempty"    json:"value,omitempty"`
	Readonly bool                   `yaml:"readonly,omitempty" json:"readonly,omitempty"`
	Group    string                 `yaml:"group,omitempty"    json:"group,omitempty"`
	Template string                 `yaml:"template,omitempty" json:"template,omitempty"`
	Parameters map[string]interface{} `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// Kind classifies which variant of Variable this is.
func (v Variable) Kind() VariableKind {
	switch {
	case v.Group != "":
		return VariableGroup
	case v.Template != "":
		return VariableTemplate
	default:
		return VariableKeyValue
	}
}

// ParamType enumerates the declared type of a template Parameter.
type ParamType string

const (
	ParamString    ParamType = "string"
	ParamNumber    ParamType = "number"
	ParamBoolean   ParamType = "boolean"
	ParamObject    ParamType = "object"
	ParamStep      ParamType = "step"
	ParamStepList  ParamType = "stepList"
	ParamJob       ParamType = "job"
	ParamJobList   ParamType = "jobList"
	ParamStage     ParamType = "stage"
	ParamStageList ParamType = "stageList"
)

// Parameter declares one template input.
type Parameter struct {
	Name        string        `yaml:"name"                  json:"name"                  jsonschema:"required"`
	DisplayName string        `yaml:"displayName,omitempty" json:"displayName,omitempty"`
	Type        ParamType     `yaml:"type,omitempty"        json:"type,omitempty"`
	Default     interface{}   `yaml:"default,omitempty"     json:"default,omitempty"`
	Values      []interface{} `yaml:"values,omitempty"      json:"values,omitempty"`
}

// StepStatus is the result lifecycle state of a step/job/stage.
type StepStatus string

const (
	StatusPending             StepStatus = "Pending"
	StatusRunning             StepStatus = "Running"
	StatusSucceeded           StepStatus = "Succeeded"
	StatusSucceededWithIssues StepStatus = "SucceededWithIssues"
	StatusFailed              StepStatus = "Failed"
	StatusSkipped             StepStatus = "Skipped"
	StatusCanceled            StepStatus = "Canceled"
)

// StepResult is the outcome of one executed (or skipped) step.
type StepResult struct {
	Name        string            `json:"name,omitempty"`
	DisplayName string            `json:"displayName,omitempty"`
	Status      StepStatus        `json:"status"`
	Output      string            `json:"output"`
	Error       string            `json:"error,omitempty"`
	Duration    float64           `json:"duration"`
	ExitCode    *int              `json:"exitCode,omitempty"`
	Outputs     map[string]string `json:"outputs,omitempty"`
}

// JobResult aggregates one job instance's step results.
type JobResult struct {
	Name           string       `json:"name"`
	MatrixInstance string       `json:"matrixInstance,omitempty"`
	Status         StepStatus   `json:"status"`
	Steps          []StepResult `json:"steps"`
	Duration       float64      `json:"duration"`
}

// StageResult aggregates one stage's job results.
type StageResult struct {
	Name     string      `json:"name"`
	Status   StepStatus  `json:"status"`
	Jobs     []JobResult `json:"jobs"`
	Duration float64     `json:"duration"`
}

// ExecutionResult is the top-level return value of a pipeline run.
type ExecutionResult struct {
	Stages    []StageResult     `json:"stages"`
	Success   bool              `json:"success"`
	Variables map[string]string `json:"variables"`
	Duration  float64           `json:"duration"`
}
