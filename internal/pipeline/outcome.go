package pipeline

import (
	"time"

	"github.com/felixgeelhaar/moor/internal/audit"
)

// Stage identifiers, in deploy order.
const (
	StageCollectSpec       = "collect-spec"
	StageSyncWorkspace     = "sync-workspace"
	StagePrecheckTooling   = "precheck-tooling"
	StageDeriveIdentity    = "derive-identity"
	StageConnectivityCheck = "connectivity-check"
	StageProvisionHost     = "provision-host"
	StageTransferArtifact  = "transfer-artifact"
	StageBuildAndRun       = "build-and-run"
	StageConfigureProxy    = "configure-proxy"
	StageValidate          = "validate"
	StageTeardown          = "teardown-resources"
)

// Class controls whether a stage failure halts the pipeline.
type Class string

const (
	// ClassFatal failures end the run immediately
	ClassFatal Class = "fatal"
	// ClassTolerated failures are recorded and the run continues
	ClassTolerated Class = "tolerated"
)

// StageOutcome is the immutable result of one stage. It is created when the
// stage completes and only ever appended to the run's record.
type StageOutcome struct {
	Stage    string
	OK       bool
	Warn     bool
	Detail   string
	Class    Class
	Duration time.Duration
	Err      error
}

// Record converts the outcome for the audit manifest.
func (o StageOutcome) Record() audit.StageRecord {
	detail := o.Detail
	if o.Err != nil {
		detail = o.Err.Error()
	}
	return audit.StageRecord{
		Stage:    o.Stage,
		OK:       o.OK,
		Class:    string(o.Class),
		Detail:   detail,
		Duration: o.Duration.Round(time.Millisecond).String(),
	}
}

// RunResult is the final pipeline output, created once at the end of a run.
type RunResult struct {
	Outcomes  []StageOutcome
	Status    string
	LastStage string
	LogPath   string
	Err       error

	// DryRunCommands lists what a dry run would have executed. Empty for
	// live runs.
	DryRunCommands []string
}

// Succeeded reports whether the run completed without a fatal failure.
func (r *RunResult) Succeeded() bool {
	return r.Err == nil
}
