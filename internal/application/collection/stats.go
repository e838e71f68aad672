package collection

// ActionStats is the immutable per-invoice stat delta produced by the action
// executor. The orchestrator folds deltas into its running totals instead of
// sharing mutable state across pipeline stages.
type ActionStats struct {
	ActionsCreated int `json:"actions_created"`
	EmailsSent     int `json:"emails_sent"`
	Errors         int `json:"errors"`
}

// Add folds another delta into this one, returning the sum
func (s ActionStats) Add(other ActionStats) ActionStats {
	return ActionStats{
		ActionsCreated: s.ActionsCreated + other.ActionsCreated,
		EmailsSent:     s.EmailsSent + other.EmailsSent,
		Errors:         s.Errors + other.Errors,
	}
}

// RunStats are the aggregated statistics of one collection run
type RunStats struct {
	Processed    int `json:"processed"`
	ActionsTaken int `json:"actions_taken"`
	EmailsSent   int `json:"emails_sent"`
	Errors       int `json:"errors"`
}

// RunResult is the structured outcome returned to the run's caller. A failed
// run (Success=false) is distinguishable from a completed run with errors
// (Success=true, Stats.Errors > 0).
type RunResult struct {
	Success    bool     `json:"success"`
	Stats      RunStats `json:"stats"`
	Errors     []string `json:"errors"`
	DurationMs int64    `json:"duration_ms"`
}

// runState is the explicit state of the run loop. Transitions are forward
// only: LOADING -> DONE when the batch is empty, otherwise LOADING ->
// (SELECTING -> ANALYZING -> DECIDING -> EXECUTING)* -> DONE.
type runState string

const (
	stateLoading   runState = "LOADING"
	stateSelecting runState = "SELECTING"
	stateAnalyzing runState = "ANALYZING"
	stateDeciding  runState = "DECIDING"
	stateExecuting runState = "EXECUTING"
	stateDone      runState = "DONE"
)
