package cache

import "errors"

// ErrNotFound is a lookup miss. A valid result state, not a failure.
var ErrNotFound = errors.New("cache entry not found")

// ErrStoreUnavailable indicates the persistence layer is unreachable.
// Fatal for the operation; callers must not proceed as if the reserve
// uniqueness guarantee held.
var ErrStoreUnavailable = errors.New("cache store unavailable")
