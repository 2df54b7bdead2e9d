package orderstate

import (
	"testing"

	"github.com/angelmondragon/orderengine/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderengine/pkg/errors"
)

func TestValidateMatchesTransitionTable(t *testing.T) {
	allowed := map[[2]enums.OrderStatus]bool{
		{enums.OrderStatusPending, enums.OrderStatusProcessing}:   true,
		{enums.OrderStatusPending, enums.OrderStatusCancelled}:    true,
		{enums.OrderStatusProcessing, enums.OrderStatusShipped}:   true,
		{enums.OrderStatusProcessing, enums.OrderStatusCancelled}: true,
		{enums.OrderStatusShipped, enums.OrderStatusDelivered}:    true,
	}

	statuses := enums.OrderStatuses()
	pairs := 0
	for _, from := range statuses {
		for _, to := range statuses {
			pairs++
			want := allowed[[2]enums.OrderStatus{from, to}]
			if got := Validate(from, to); got != want {
				t.Fatalf("Validate(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
	if pairs != 25 {
		t.Fatalf("expected 25 pairs, checked %d", pairs)
	}
}

func TestValidateRejectsUnknownStatuses(t *testing.T) {
	if Validate("archived", enums.OrderStatusCancelled) {
		t.Fatal("unknown source status must be rejected")
	}
	if Validate(enums.OrderStatusPending, "archived") {
		t.Fatal("unknown target status must be rejected")
	}
}

func TestTransitionReturnsTypedError(t *testing.T) {
	if err := Transition(enums.OrderStatusProcessing, enums.OrderStatusShipped); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := Transition(enums.OrderStatusShipped, enums.OrderStatusCancelled)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInvalidTransition {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if typed.Kind() != pkgerrors.KindState {
		t.Fatalf("expected state kind, got %s", typed.Kind())
	}
	details, ok := typed.Details().(TransitionDetails)
	if !ok || details.From != enums.OrderStatusShipped || details.To != enums.OrderStatusCancelled {
		t.Fatalf("expected both states in details, got %#v", typed.Details())
	}
}

func TestTerminalAndCancellable(t *testing.T) {
	cases := []struct {
		status      enums.OrderStatus
		terminal    bool
		cancellable bool
	}{
		{enums.OrderStatusPending, false, true},
		{enums.OrderStatusProcessing, false, true},
		{enums.OrderStatusShipped, false, false},
		{enums.OrderStatusDelivered, true, false},
		{enums.OrderStatusCancelled, true, false},
	}
	for _, tc := range cases {
		if got := IsTerminal(tc.status); got != tc.terminal {
			t.Fatalf("IsTerminal(%s) = %v", tc.status, got)
		}
		if got := IsCancellable(tc.status); got != tc.cancellable {
			t.Fatalf("IsCancellable(%s) = %v", tc.status, got)
		}
	}
}

func TestAllowedFromReturnsCopy(t *testing.T) {
	next := AllowedFrom(enums.OrderStatusPending)
	if len(next) != 2 {
		t.Fatalf("expected 2 targets, got %v", next)
	}
	next[0] = enums.OrderStatusDelivered
	if Validate(enums.OrderStatusPending, enums.OrderStatusDelivered) {
		t.Fatal("mutating AllowedFrom result must not change the table")
	}
}
