package compose

import "fmt"

// DiscoveryError means the repository root could not be walked. It aborts
// the whole scan pass.
type DiscoveryError struct {
	Root string
	Err  error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discover compose files under %s: %v", e.Root, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// ResolutionError means one unit's configuration could not be materialized.
// The unit is skipped; the scan continues.
type ResolutionError struct {
	Path string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve compose file %s: %v", e.Path, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }
