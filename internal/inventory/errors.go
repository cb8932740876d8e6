package inventory

import "errors"

// Domain errors for the inventory package.
//
//	if errors.Is(err, inventory.ErrNodeNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNodeNotFound is returned when a node ID has never been seen.
	ErrNodeNotFound = errors.New("inventory: node not found")

	// ErrInvalidNode is returned when a node ID is outside 0..254.
	ErrInvalidNode = errors.New("inventory: invalid node")
)
