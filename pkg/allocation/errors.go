package allocation

import (
	"errors"
	"fmt"
)

// ErrCapacityExhausted matches every CapacityExhaustedError.
var ErrCapacityExhausted = errors.New("capacity exhausted")

// CapacityExhaustedError reports that the fleet could not cover every
// candidate. It describes a degraded plan, not a failed call.
type CapacityExhaustedError struct {
	Needed    int // buses all candidates would need
	Available int
	Unserved  int // candidate routes left out
}

func (e *CapacityExhaustedError) Error() string {
	return fmt.Sprintf("fleet of %d buses cannot cover %d needed; %d routes unserved", e.Available, e.Needed, e.Unserved)
}

func (e *CapacityExhaustedError) Is(target error) bool { return target == ErrCapacityExhausted }
