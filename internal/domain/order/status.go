package order

import "fmt"

// Status is the closed set of order lifecycle states. The original free-text
// status field is reified here so an order can never hold an unknown state.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusPaid      Status = "Paid"
	StatusShipped   Status = "Shipped"
	StatusDelivered Status = "Delivered"
	StatusCancelled Status = "Cancelled"
)

// successors maps each status to its immediate successors. Statuses advance
// strictly one step at a time: Pending -> Paid -> Shipped -> Delivered, with
// Pending -> Cancelled as the only alternate branch. Delivered and Cancelled
// are terminal.
var successors = map[Status][]Status{
	StatusPending:   {StatusPaid, StatusCancelled},
	StatusPaid:      {StatusShipped},
	StatusShipped:   {StatusDelivered},
	StatusDelivered: nil,
	StatusCancelled: nil,
}

// ParseStatus converts a string to a Status, rejecting unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := successors[st]; !ok {
		return "", fmt.Errorf("unknown order status %q", s)
	}
	return st, nil
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return len(successors[s]) == 0
}

// CanTransitionTo reports whether to is an immediate successor of s.
func (s Status) CanTransitionTo(to Status) bool {
	for _, next := range successors[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	return string(s)
}
