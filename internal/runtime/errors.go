package runtime

import "errors"

// ErrNotFound indicates the requested runtime resource was not found.
var ErrNotFound = errors.New("runtime: resource not found")
