package runner

import "fmt"

// PrerequisiteError is a validation failure found before any mutation:
// a missing tool, directory, or build descriptor
type PrerequisiteError struct {
	Item   string
	Reason string
}

func (e *PrerequisiteError) Error() string {
	return fmt.Sprintf("prerequisite not met for %s: %s", e.Item, e.Reason)
}

// BuildError aborts the run without persisting staged fingerprints.
// Images already pushed this run stay pushed; the next run retries.
type BuildError struct {
	Dir string
	Err error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build failed for %s: %v", e.Dir, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// DeployError aborts remaining deploys. Fingerprints saved for the run
// stand: the builds succeeded and the deploy can be retried.
type DeployError struct {
	Deployment string
	Err        error
}

func (e *DeployError) Error() string {
	return fmt.Sprintf("deploy failed for %s: %v", e.Deployment, e.Err)
}

func (e *DeployError) Unwrap() error {
	return e.Err
}
