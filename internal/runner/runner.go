// Package runner sequences change detection, builds, and deploys for one
// invocation.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shipit-dev/shipit/internal/docker"
	"github.com/shipit-dev/shipit/pkg/config"
	"github.com/shipit-dev/shipit/pkg/detect"
	"github.com/shipit-dev/shipit/pkg/logging"
	"github.com/shipit-dev/shipit/pkg/state"
	"go.uber.org/zap"
)

// State is the terminal state of a run
type State string

const (
	// StateAllSkipped means no directory changed; nothing was built,
	// deployed, or persisted
	StateAllSkipped State = "all-skipped"
	// StateCompleted means every build and deploy succeeded
	StateCompleted State = "completed"
	// StateFailed means the run aborted on a build or deploy failure
	StateFailed State = "failed"
)

// Deployer applies an image to a Deployment and waits for the rollout
type Deployer interface {
	HealthCheck(ctx context.Context) error
	SetDeploymentImage(ctx context.Context, namespace, deployment, image string) error
	WaitForRollout(ctx context.Context, namespace, deployment string, timeout time.Duration) (bool, error)
}

// Verifier confirms a pushed tag resolves in the registry
type Verifier interface {
	TagExists(ctx context.Context, imageRef string) (bool, error)
}

// BuildResult is the per-directory outcome of a run
type BuildResult struct {
	Dir        string
	Deployment string
	Digest     string
	Image      string
}

// Outcome accumulates the results of one run
type Outcome struct {
	State   State
	RunTag  string
	Results []BuildResult
}

// Options adjust a single run
type Options struct {
	// Force treats every directory as changed regardless of stored
	// fingerprints
	Force bool
	// Reset discards all persisted fingerprints before running
	Reset bool
	// RunTag overrides the generated run identifier, used by tests
	RunTag string
}

// Runner executes the build-and-deploy state machine
type Runner struct {
	cfg      *config.Config
	builder  docker.Builder
	deployer Deployer
	verifier Verifier
	opts     Options
}

// New creates a runner. verifier may be nil to skip post-push checks.
func New(cfg *config.Config, builder docker.Builder, deployer Deployer, verifier Verifier, opts Options) *Runner {
	return &Runner{
		cfg:      cfg,
		builder:  builder,
		deployer: deployer,
		verifier: verifier,
		opts:     opts,
	}
}

// Run executes one invocation: validate, detect changes, build changed
// directories sequentially, persist fingerprints once all builds succeed,
// then deploy in configured order.
func (r *Runner) Run(ctx context.Context) (*Outcome, error) {
	outcome := &Outcome{State: StateFailed}

	if err := r.validate(ctx); err != nil {
		return outcome, err
	}

	st := state.New()
	if r.opts.Reset {
		logging.Logger.Info("Discarding persisted fingerprints", zap.String("file", r.cfg.StateFile))
	} else {
		st = state.Load(r.cfg.StateFile)
	}

	toBuild, err := r.plan(st)
	if err != nil {
		return outcome, err
	}

	if len(toBuild) == 0 {
		logging.Logger.Info("All directories unchanged, nothing to do")
		outcome.State = StateAllSkipped
		return outcome, nil
	}

	runTag := r.opts.RunTag
	if runTag == "" {
		runTag = uuid.New().String()
	}
	outcome.RunTag = runTag
	logging.Logger.Info("Starting build run",
		zap.String("tag", runTag),
		zap.Int("changed", len(toBuild)),
		zap.Int("total", len(r.cfg.Services)))

	// Builds run strictly sequentially: the docker layer cache is a shared
	// resource, and the store must only advance once every build succeeded
	for i := range toBuild {
		if err := r.build(ctx, &toBuild[i], runTag, st); err != nil {
			return outcome, err
		}
		outcome.Results = append(outcome.Results, toBuild[i].BuildResult)
	}

	if err := st.Save(r.cfg.StateFile); err != nil {
		return outcome, fmt.Errorf("failed to save fingerprint state: %w", err)
	}
	logging.Logger.Info("Fingerprint state saved",
		zap.String("file", r.cfg.StateFile),
		zap.Int("entries", st.Len()))

	if err := r.deploy(ctx, outcome.Results); err != nil {
		return outcome, err
	}

	outcome.State = StateCompleted
	return outcome, nil
}

// validate aborts the run before any mutation if a prerequisite is missing
func (r *Runner) validate(ctx context.Context) error {
	if err := r.builder.Preflight(ctx); err != nil {
		return &PrerequisiteError{Item: "docker", Reason: err.Error()}
	}

	for _, svc := range r.cfg.Services {
		if err := r.builder.CheckContext(r.cfg.ServiceDir(svc)); err != nil {
			return &PrerequisiteError{Item: svc.Dir, Reason: err.Error()}
		}
	}

	if err := r.deployer.HealthCheck(ctx); err != nil {
		return &PrerequisiteError{Item: "kubernetes", Reason: err.Error()}
	}

	return nil
}

type buildCandidate struct {
	BuildResult
	path string
}

// plan partitions the configured services into changed and unchanged
func (r *Runner) plan(st *state.Store) ([]buildCandidate, error) {
	detector := &detect.Detector{IgnoreFile: r.cfg.IgnoreFile}

	var toBuild []buildCandidate
	for _, svc := range r.cfg.Services {
		changed, digest, err := detector.Changed(r.cfg.ServiceDir(svc), svc.Dir, st)
		if err != nil {
			return nil, err
		}

		if !changed && !r.opts.Force {
			logging.Logger.Info("Unchanged, skipping", zap.String("dir", svc.Dir))
			continue
		}
		if !changed {
			logging.Logger.Info("Unchanged but rebuild forced", zap.String("dir", svc.Dir))
		}

		toBuild = append(toBuild, buildCandidate{
			BuildResult: BuildResult{
				Dir:        svc.Dir,
				Deployment: svc.Deployment,
				Digest:     digest,
			},
			path: r.cfg.ServiceDir(svc),
		})
	}
	return toBuild, nil
}

// build builds and pushes one directory and stages its store update.
// The store is only staged in memory here; Run persists it after every
// build succeeded.
func (r *Runner) build(ctx context.Context, c *buildCandidate, runTag string, st *state.Store) error {
	dir := c.path
	c.Image = fmt.Sprintf("%s/%s:%s", r.cfg.Registry, c.Dir, runTag)

	if err := r.builder.Build(ctx, dir, c.Image); err != nil {
		return &BuildError{Dir: c.Dir, Err: err}
	}
	if err := r.builder.Push(ctx, c.Image); err != nil {
		return &BuildError{Dir: c.Dir, Err: err}
	}

	if r.verifier != nil {
		if ok, err := r.verifier.TagExists(ctx, c.Image); err != nil {
			logging.Logger.Warn("Could not verify pushed tag",
				zap.String("image", c.Image),
				zap.Error(err))
		} else if !ok {
			logging.Logger.Warn("Pushed tag not visible in registry yet",
				zap.String("image", c.Image))
		}
	}

	// The fingerprint is recomputed after the build so edits made while
	// building are picked up on the next run
	detector := &detect.Detector{IgnoreFile: r.cfg.IgnoreFile}
	digest, err := detector.Fingerprint(dir)
	if err != nil {
		return &BuildError{Dir: c.Dir, Err: err}
	}
	c.Digest = digest
	st.Put(c.Dir, digest)

	logging.Logger.Info("Built and pushed",
		zap.String("dir", c.Dir),
		zap.String("image", c.Image))
	return nil
}

// deploy applies each built image in the original configured order. A
// rollout that misses its budget is a warning, not a failure.
func (r *Runner) deploy(ctx context.Context, results []BuildResult) error {
	for _, res := range results {
		logging.Logger.Info("Deploying",
			zap.String("deployment", res.Deployment),
			zap.String("image", res.Image),
			zap.String("namespace", r.cfg.Namespace))

		if err := r.deployer.SetDeploymentImage(ctx, r.cfg.Namespace, res.Deployment, res.Image); err != nil {
			return &DeployError{Deployment: res.Deployment, Err: err}
		}

		converged, err := r.deployer.WaitForRollout(ctx, r.cfg.Namespace, res.Deployment, r.cfg.RolloutBudget())
		if err != nil {
			return &DeployError{Deployment: res.Deployment, Err: err}
		}
		if !converged {
			logging.Logger.Warn("Rollout did not converge within budget, continuing",
				zap.String("deployment", res.Deployment),
				zap.Duration("budget", r.cfg.RolloutBudget()))
			continue
		}

		logging.Logger.Info("Rollout complete", zap.String("deployment", res.Deployment))
	}
	return nil
}
