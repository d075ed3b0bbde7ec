// Package pipeline sequences the deployment stages. There is no state store:
// correctness across runs rests entirely on deterministic naming and fixed
// stage order, with every mutating remote step written as replace-by-name.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/moor/internal/audit"
	"github.com/felixgeelhaar/moor/internal/identity"
	"github.com/felixgeelhaar/moor/internal/log"
	"github.com/felixgeelhaar/moor/internal/remote"
	"github.com/felixgeelhaar/moor/internal/spec"
	"github.com/felixgeelhaar/moor/internal/validate"
	"github.com/felixgeelhaar/moor/internal/workspace"
)

// Pipeline wires the collaborators for one run. Collaborators are injected so
// tests and dry-run can swap the transport without touching stage logic.
type Pipeline struct {
	Spec       *spec.DeploymentSpec
	Workspaces *workspace.Manager
	Trail      *audit.Trail
	Logger     *log.Logger

	// Dial opens the live executor. Defaults to SSH with the spec's
	// credentials; tests inject a Recorder factory.
	Dial func(ctx context.Context) (remote.Executor, error)

	// Prober validates the deployment. Defaults to a plain HTTP prober.
	Prober *validate.Prober

	// ProbeAttempts > 1 enables bounded retry on connection-level probe
	// failures. Default is the single-shot behavior.
	ProbeAttempts uint64

	// Now supplies the run timestamp; injectable for deterministic tests.
	Now func() time.Time
}

// run carries the state the stages build up. One value per invocation;
// nothing escapes the run except the RunResult and the audit trail.
type run struct {
	p        *Pipeline
	spec     *spec.DeploymentSpec
	id       identity.Identity
	artifact *workspace.Artifact

	exec     remote.Executor // what stages talk to (live, or recorder in dry-run)
	live     remote.Executor // the real connection, for Close
	recorder *remote.Recorder
	dryRun   bool

	outcomes []StageOutcome
}

type stage struct {
	name  string
	class Class
	fn    func(r *run, ctx context.Context) (string, error)
}

var deployStages = []stage{
	{StageCollectSpec, ClassFatal, (*run).collectSpec},
	{StageSyncWorkspace, ClassFatal, (*run).syncWorkspace},
	{StagePrecheckTooling, ClassFatal, (*run).precheckTooling},
	{StageDeriveIdentity, ClassFatal, (*run).deriveIdentity},
	{StageConnectivityCheck, ClassFatal, (*run).connectivityCheck},
	{StageProvisionHost, ClassFatal, (*run).provisionHost},
	{StageTransferArtifact, ClassFatal, (*run).transferArtifact},
	{StageBuildAndRun, ClassFatal, (*run).buildAndRun},
	{StageConfigureProxy, ClassFatal, (*run).configureProxy},
	{StageValidate, ClassFatal, (*run).validateDeployment},
}

var cleanupStages = []stage{
	{StageCollectSpec, ClassFatal, (*run).collectSpec},
	{StageDeriveIdentity, ClassFatal, (*run).deriveIdentity},
	{StageConnectivityCheck, ClassFatal, (*run).connectivityCheck},
	{StageProvisionHost, ClassFatal, (*run).verifyTooling},
	{StageTransferArtifact, ClassFatal, (*run).ensureBaseDir},
	{StageTeardown, ClassFatal, (*run).teardownResources},
}

// Run executes the pipeline for the spec's mode and returns the RunResult.
// The result's Err is the fatal stage error, already coded for exit mapping.
func (p *Pipeline) Run(ctx context.Context) *RunResult {
	r := &run{
		p:      p,
		spec:   p.Spec,
		dryRun: p.Spec.Mode == spec.ModeDryRun,
	}
	defer func() {
		if r.live != nil {
			r.live.Close()
		}
	}()

	stages := deployStages
	if p.Spec.Mode == spec.ModeCleanup {
		stages = cleanupStages
	}

	result := r.execute(ctx, stages)

	if r.dryRun && r.recorder != nil {
		for _, c := range r.recorder.Commands() {
			result.DryRunCommands = append(result.DryRunCommands, fmtWouldRun(c))
		}
	}

	if p.Trail != nil {
		manifest := audit.RunManifest{
			Mode:       string(p.Spec.Mode),
			Spec:       p.Spec.Summary(),
			StartedAt:  result.startedAt,
			FinishedAt: time.Now(),
			Status:     result.Status,
		}
		for _, o := range result.Outcomes {
			manifest.Stages = append(manifest.Stages, o.Record())
		}
		if err := p.Trail.WriteManifest(manifest); err != nil {
			p.logger().WithError(err).Warn("cannot write run manifest")
		}
		result.LogPath = p.Trail.LogPath()
	}

	return &result.RunResult
}

type runResult struct {
	RunResult
	startedAt time.Time
}

func (r *run) execute(ctx context.Context, stages []stage) *runResult {
	result := &runResult{startedAt: r.now()}

	for _, s := range stages {
		start := time.Now()
		detail, err := s.fn(r, ctx)
		outcome := StageOutcome{
			Stage:    s.name,
			OK:       err == nil,
			Detail:   detail,
			Class:    s.class,
			Duration: time.Since(start),
			Err:      err,
		}
		if err == nil && detailIsWarning(detail) {
			outcome.Warn = true
		}

		r.outcomes = append(r.outcomes, outcome)
		result.Outcomes = r.outcomes
		r.audit(outcome)

		if err != nil {
			result.Status = "failed"
			result.Err = err
			r.logger().WithError(err).Error("pipeline halted",
				"stage", s.name, "last_completed", result.LastStage)
			return result
		}

		result.LastStage = s.name

		if ctx.Err() != nil {
			result.Status = "interrupted"
			result.Err = ctx.Err()
			return result
		}
	}

	if r.dryRun {
		result.Status = "dry-run"
	} else {
		result.Status = "succeeded"
	}
	return result
}

func (r *run) audit(o StageOutcome) {
	if r.p.Trail != nil {
		r.p.Trail.Stage(o.Record())
	}
}

func (r *run) logger() *log.Logger {
	return r.p.logger()
}

func (p *Pipeline) logger() *log.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return log.DefaultLogger()
}

func (r *run) now() time.Time {
	if r.p.Now != nil {
		return r.p.Now()
	}
	return time.Now()
}

func (r *run) prober() *validate.Prober {
	if r.p.Prober != nil {
		return r.p.Prober
	}
	return &validate.Prober{}
}

// auditedExecutor mirrors every command's outcome into the audit trail so a
// fatal failure is diagnosable after the fact, per stage policy or not.
type auditedExecutor struct {
	inner remote.Executor
	trail *audit.Trail
}

func (a *auditedExecutor) Run(ctx context.Context, c remote.Cmd) (remote.Result, error) {
	res, err := a.inner.Run(ctx, c)
	if a.trail != nil {
		if err != nil {
			a.trail.Printf("cmd: %s | transport error: %v", c.Line, err)
		} else {
			a.trail.Command(res)
		}
	}
	return res, err
}

func (a *auditedExecutor) Close() error {
	return a.inner.Close()
}

func detailIsWarning(detail string) bool {
	return len(detail) >= 8 && detail[:8] == "warning:"
}

func fmtWouldRun(c remote.Cmd) string {
	if c.Mutating {
		return fmt.Sprintf("would run (mutating): %s", c.Line)
	}
	return fmt.Sprintf("would run: %s", c.Line)
}
