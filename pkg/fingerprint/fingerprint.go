// Package fingerprint computes deterministic content fingerprints for
// directory trees.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/shipit-dev/shipit/pkg/ignore"
)

type fileEntry struct {
	rel string
	sum string
}

// Compute walks dir, skipping paths excluded by rules (pruned subtrees are
// never descended into), and returns a single hex digest over the ordered
// per-file digests. Identical trees produce identical digests regardless of
// filesystem enumeration order; a tree with zero eligible files produces
// the digest of empty input.
func Compute(dir string, rules *ignore.RuleSet) (string, error) {
	var entries []fileEntry

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == dir {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		switch rules.Match(rel, d.IsDir()) {
		case ignore.Prune:
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		case ignore.Exclude:
			return nil
		}

		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		sum, err := fileDigest(p)
		if err != nil {
			return fmt.Errorf("failed to hash %s: %w", rel, err)
		}
		entries = append(entries, fileEntry{rel: rel, sum: sum})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to walk %s: %w", dir, err)
	}

	// Canonical order: lexicographic by relative path
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].rel < entries[j].rel
	})

	h := sha256.New()
	for _, e := range entries {
		fmt.Fprintf(h, "%s\x00%s\n", e.rel, e.sum)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
