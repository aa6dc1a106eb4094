package meshcache

import (
	"errors"
	"fmt"
)

// ErrShutdown is returned by any façade operation invoked after Shutdown
// has begun.
var ErrShutdown = errors.New("meshcache: shutdown in progress")

// CacheLoadFailed reports that the user-supplied loader passed to
// GetOrLoad returned an error. The failed attempt is never cached — it is
// discarded along with the single-flight entry that tracked it.
type CacheLoadFailed struct {
	Cache string
	Key   string
	Cause error
}

func (e *CacheLoadFailed) Error() string {
	return fmt.Sprintf("meshcache: load failed for cache %q key %q: %v", e.Cache, e.Key, e.Cause)
}

func (e *CacheLoadFailed) Unwrap() error { return e.Cause }
