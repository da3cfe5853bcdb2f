package routing

import "errors"

// Sentinel errors for routing failures. Call sites wrap them with
// fmt.Errorf and %w so callers can classify with errors.Is.
var (
	// ErrUnsupportedChain indicates the requested chain is not part of the catalog
	ErrUnsupportedChain = errors.New("unsupported chain")

	// ErrNoRouteFound indicates no feasible path exists for the request
	ErrNoRouteFound = errors.New("no route found")
)
