package routing

import (
	"errors"
	"fmt"

	"urban_router/pkg/network"
)

// ErrNoRoute is returned when no route exists between the two points.
var ErrNoRoute = errors.New("no route found")

// ErrPointTooFar is returned when a query point is too far from every node.
var ErrPointTooFar = errors.New("point too far from network")

// NodeNotFoundError reports an origin or destination missing from the graph.
type NodeNotFoundError struct {
	ID network.NodeID
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("node %q not found", e.ID)
}

func (e *NodeNotFoundError) Is(target error) bool { return target == network.ErrNotFound }

// NoPathError reports two nodes that exist but are not mutually reachable.
type NoPathError struct {
	From, To      network.NodeID
	FromComponent int
	ToComponent   int
}

func (e *NoPathError) Error() string {
	if e.FromComponent == e.ToComponent {
		return fmt.Sprintf("no route from %s to %s within component %d", e.From, e.To, e.FromComponent)
	}
	return fmt.Sprintf("no route from %s (component %d) to %s (component %d)",
		e.From, e.FromComponent, e.To, e.ToComponent)
}

func (e *NoPathError) Is(target error) bool { return target == ErrNoRoute }
