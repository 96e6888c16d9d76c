// Package detect decides whether a service directory needs a rebuild.
package detect

import (
	"fmt"

	"github.com/shipit-dev/shipit/pkg/fingerprint"
	"github.com/shipit-dev/shipit/pkg/ignore"
	"github.com/shipit-dev/shipit/pkg/state"
)

// Detector compares fresh directory fingerprints against the persisted
// store. Detection is read-only; it never mutates the store.
type Detector struct {
	// IgnoreFile is the per-directory ignore file name, e.g. ".shipignore"
	IgnoreFile string
}

// Fingerprint computes the current content fingerprint of dir, honoring
// its ignore file. Rules are parsed fresh on every call.
func (d *Detector) Fingerprint(dir string) (string, error) {
	rules, err := ignore.ReadRules(dir, d.IgnoreFile)
	if err != nil {
		return "", err
	}

	digest, err := fingerprint.Compute(dir, rules)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint %s: %w", dir, err)
	}
	return digest, nil
}

// Changed reports whether dir differs from its stored fingerprint. A
// directory with no stored entry has never been built and counts as
// changed. The freshly computed digest is returned either way.
func (d *Detector) Changed(dir, id string, st *state.Store) (bool, string, error) {
	digest, err := d.Fingerprint(dir)
	if err != nil {
		return false, "", err
	}

	prev, ok := st.Get(id)
	return !ok || prev != digest, digest, nil
}
