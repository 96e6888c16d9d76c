// Package registry confirms pushed tags are resolvable in the registry.
package registry

import (
	"context"
	"fmt"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
)

// Verifier checks that an image reference resolves in its registry
type Verifier struct {
	keychain authn.Keychain
}

// NewVerifier creates a verifier using the default docker keychain
func NewVerifier() *Verifier {
	return &Verifier{keychain: authn.DefaultKeychain}
}

// TagExists resolves imageRef against the registry with a HEAD request.
// Used after a push as a best-effort confirmation; the push exit status
// stays authoritative.
func (v *Verifier) TagExists(ctx context.Context, imageRef string) (bool, error) {
	ref, err := name.ParseReference(imageRef)
	if err != nil {
		return false, fmt.Errorf("failed to parse image reference %q: %w", imageRef, err)
	}

	_, err = remote.Head(ref,
		remote.WithContext(ctx),
		remote.WithAuthFromKeychain(v.keychain))
	if err != nil {
		return false, err
	}
	return true, nil
}
