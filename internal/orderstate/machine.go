package orderstate

import (
	"slices"

	"github.com/angelmondragon/orderengine/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderengine/pkg/errors"
)

// transitions lists every legal move. Delivered and cancelled are terminal;
// a status never transitions to itself.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing: {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:    {enums.OrderStatusDelivered},
}

// TransitionDetails is attached to INVALID_TRANSITION errors.
type TransitionDetails struct {
	From enums.OrderStatus `json:"from"`
	To   enums.OrderStatus `json:"to"`
}

// Validate reports whether an order may move from current to next.
func Validate(current, next enums.OrderStatus) bool {
	return slices.Contains(transitions[current], next)
}

// Transition is Validate returning a typed INVALID_TRANSITION error naming both states.
func Transition(current, next enums.OrderStatus) error {
	if Validate(current, next) {
		return nil
	}
	return pkgerrors.Newf(pkgerrors.CodeInvalidTransition, "cannot change order status from %s to %s", current, next).
		WithDetails(TransitionDetails{From: current, To: next})
}

// AllowedFrom returns the statuses reachable from current in one step.
func AllowedFrom(current enums.OrderStatus) []enums.OrderStatus {
	return slices.Clone(transitions[current])
}

// IsTerminal reports whether no transition leaves status.
func IsTerminal(status enums.OrderStatus) bool {
	return len(transitions[status]) == 0
}

// IsCancellable reports whether status may still move to cancelled.
func IsCancellable(status enums.OrderStatus) bool {
	return Validate(status, enums.OrderStatusCancelled)
}
