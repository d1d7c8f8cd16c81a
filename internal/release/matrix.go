package release

import (
	"context"
	"errors"
	"fmt"
)

// explicitLookback is the catalog window consulted when explicit
// versions are requested. Explicit versions may be older than a small
// --last-n default, so the window is widened to a fixed size instead
// of scanning the whole catalog on every invocation.
const explicitLookback = 30

// UnknownVersionError indicates a requested version was not found in
// the consulted catalog window.
type UnknownVersionError struct {
	Version string
}

func (e *UnknownVersionError) Error() string {
	return fmt.Sprintf("version %s not found in the last %d releases", e.Version, explicitLookback)
}

// IsUnknownVersion reports whether err is an UnknownVersionError.
func IsUnknownVersion(err error) bool {
	var ue *UnknownVersionError
	return errors.As(err, &ue)
}

// Selector picks which versions to test. Exactly one field is set.
type Selector struct {
	// LastN selects the N most recent releases.
	LastN int

	// Versions selects explicit version strings, tested in the given
	// order.
	Versions []string
}

// Matrix resolves selectors against a catalog.
type Matrix struct {
	catalog *Catalog
}

// NewMatrix creates a Matrix over the given catalog.
func NewMatrix(catalog *Catalog) *Matrix {
	return &Matrix{catalog: catalog}
}

// Resolve turns a selector into an ordered list of installable
// releases. LastN preserves catalog order (newest first); explicit
// versions preserve the requested order and fail with
// *UnknownVersionError when absent from the widened catalog window.
func (m *Matrix) Resolve(ctx context.Context, sel Selector) ([]Release, error) {
	if len(sel.Versions) > 0 {
		available, err := m.catalog.Releases(ctx, explicitLookback)
		if err != nil {
			return nil, err
		}
		byVersion := make(map[string]Release, len(available))
		for _, rel := range available {
			byVersion[rel.Version.String()] = rel
		}

		resolved := make([]Release, 0, len(sel.Versions))
		for _, requested := range sel.Versions {
			version, err := ParseVersion(requested)
			if err != nil {
				return nil, err
			}
			rel, ok := byVersion[version.String()]
			if !ok {
				return nil, &UnknownVersionError{Version: version.String()}
			}
			resolved = append(resolved, rel)
		}
		return resolved, nil
	}

	n := sel.LastN
	if n <= 0 {
		n = 1
	}
	releases, err := m.catalog.Releases(ctx, n)
	if err != nil {
		return nil, err
	}
	if len(releases) > n {
		releases = releases[:n]
	}
	return releases, nil
}
