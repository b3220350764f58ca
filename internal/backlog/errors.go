package backlog

import "errors"

// Request-scoped errors returned to callers. Per-record parse failures are
// never errors; they downgrade the record and surface as warning strings.
var (
	ErrInvalidProductName = errors.New("invalid product name")
	ErrProductNotFound    = errors.New("product not found")
	ErrItemNotFound       = errors.New("item not found")
	ErrMissingWorkspace   = errors.New("missing workspace path")
	ErrWorkspaceNotFound  = errors.New(
		"path does not contain a backlog products directory (expected products/ or _kano/backlog/products/)")
)
