package engine

import "fmt"

// PlacementPolicy decides what happens when a day has no free slot.
type PlacementPolicy string

const (
	// PlaceFirstFitThenAppend appends a one-hour entry after the last one.
	PlaceFirstFitThenAppend PlacementPolicy = "first-fit-then-append"
	// PlaceFirstFitOnly reports ErrNoFreeSlot instead.
	PlaceFirstFitOnly PlacementPolicy = "first-fit-only"
)

// ParsePlacementPolicy validates a configured placement policy.
func ParsePlacementPolicy(s string) (PlacementPolicy, error) {
	switch p := PlacementPolicy(s); p {
	case PlaceFirstFitThenAppend, PlaceFirstFitOnly:
		return p, nil
	case "":
		return PlaceFirstFitThenAppend, nil
	default:
		return "", fmt.Errorf("invalid placement policy %q, must be: first-fit-then-append or first-fit-only", s)
	}
}

// CancelPolicy decides what cancelling a class or a task does.
type CancelPolicy string

const (
	// CancelKeepClass marks a cancelled lecture/lab as cancelled in place and
	// releases a cancelled task back to a free slot.
	CancelKeepClass CancelPolicy = "keep-class"
	// CancelFreeClass turns a cancelled lecture/lab into a free slot (remembering
	// the class for restore) and marks a cancelled task as cancelled.
	CancelFreeClass CancelPolicy = "free-class"
)

// ParseCancelPolicy validates a configured cancel policy.
func ParseCancelPolicy(s string) (CancelPolicy, error) {
	switch p := CancelPolicy(s); p {
	case CancelKeepClass, CancelFreeClass:
		return p, nil
	case "":
		return CancelKeepClass, nil
	default:
		return "", fmt.Errorf("invalid cancel policy %q, must be: keep-class or free-class", s)
	}
}
