package models

import "time"

// CommandResult records one external command invocation.
type CommandResult struct {
	Argv     []string
	ExitCode int
	Output   string // captured output, truncated for the report
	Duration time.Duration
}

// JobResult is the outcome of running one job. It is created empty when the
// job starts, appended to as sub-commands run, and sealed when the job
// finishes.
type JobResult struct {
	Section  string
	Kind     JobKind
	Success  bool
	Lines    []string // human-readable summary lines for the report
	Commands []CommandResult
	Err      error // nil on success
}

// NewJobResult creates an empty result for the given spec.
func NewJobResult(spec JobSpec) *JobResult {
	return &JobResult{Section: spec.Name, Kind: spec.Kind}
}

// AddCommand appends a sub-command record. Nil results are ignored so callers
// can pass through a failed runner invocation unconditionally.
func (r *JobResult) AddCommand(cr *CommandResult) {
	if cr != nil {
		r.Commands = append(r.Commands, *cr)
	}
}

// AddLine appends a summary line.
func (r *JobResult) AddLine(line string) {
	r.Lines = append(r.Lines, line)
}

// Seal marks the job finished. A nil error seals it as a success.
func (r *JobResult) Seal(err error) *JobResult {
	r.Err = err
	r.Success = err == nil
	return r
}

// LastError returns the sealed error message, or "" for a successful job.
func (r *JobResult) LastError() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Report aggregates the results of one backup run, in execution order.
type Report struct {
	Hostname  string
	StartTime time.Time
	Results   []*JobResult
}

// NewReport creates an empty report for one run.
func NewReport(hostname string, start time.Time) *Report {
	return &Report{Hostname: hostname, StartTime: start}
}

// Add appends a sealed job result.
func (r *Report) Add(result *JobResult) {
	r.Results = append(r.Results, result)
}

// Failed reports whether any job in the run failed.
func (r *Report) Failed() bool {
	for _, res := range r.Results {
		if !res.Success {
			return true
		}
	}
	return false
}
