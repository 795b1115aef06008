package domain

import "fmt"

// TransitionResult is the verdict of ValidateStatusTransition. Reason is
// set only when Valid is false.
type TransitionResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// TransitionOptions narrows how a transition is evaluated.
type TransitionOptions struct {
	// System marks a caller on the payment processing path. It unlocks the
	// Done→Invoiced and Invoiced→Paid transitions and nothing else.
	System bool
}

type TransitionOption func(*TransitionOptions)

// WithSystem marks the transition as initiated by the payment workflow.
func WithSystem() TransitionOption {
	return func(o *TransitionOptions) { o.System = true }
}

// SystemIf applies WithSystem when on is true.
func SystemIf(on bool) TransitionOption {
	return func(o *TransitionOptions) { o.System = on }
}

type edge struct{ from, to Status }

var systemOnly = map[edge]bool{
	{StatusDone, StatusInvoiced}: true,
	{StatusInvoiced, StatusPaid}: true,
}

var technicianAllowed = map[edge]bool{
	{StatusNew, StatusInProgress}:       true,
	{StatusScheduled, StatusInProgress}: true,
	{StatusInProgress, StatusDone}:      true,
}

func allow() TransitionResult { return TransitionResult{Valid: true} }

func deny(format string, args ...any) TransitionResult {
	return TransitionResult{Reason: fmt.Sprintf(format, args...)}
}

// ValidateStatusTransition decides whether a ticket may move from current
// to next when performed by role. It never fails; illegal transitions are
// reported through the result.
func ValidateStatusTransition(current, next Status, role Role, opts ...TransitionOption) TransitionResult {
	var o TransitionOptions
	for _, opt := range opts {
		opt(&o)
	}

	if !current.Valid() {
		return deny("unknown current status %q", current)
	}
	if !next.Valid() {
		return deny("unknown target status %q", next)
	}
	if !role.Valid() {
		return deny("unknown role %q", role)
	}

	if current == next {
		return allow()
	}

	if systemOnly[edge{current, next}] {
		if o.System {
			return allow()
		}
		return deny("transition %s → %s is reserved for the system payment workflow", current, next)
	}

	if next == StatusCanceled {
		if current == StatusPaid {
			return deny("a paid ticket cannot be canceled")
		}
		return allow()
	}

	if current == StatusPaid || current == StatusCanceled {
		return deny("ticket is %s; no further status changes are allowed", current)
	}

	switch role {
	case RoleTechnician:
		if technicianAllowed[edge{current, next}] {
			return allow()
		}
		return deny("role %s may not move a ticket from %s to %s", role, current, next)
	case RoleManager:
		if next == StatusPaid {
			return deny("role %s may not mark a ticket %s", role, next)
		}
		return allow()
	default:
		return allow()
	}
}

// ListAllowedStatusTransitions returns every status other than current that
// ValidateStatusTransition accepts for role, in lifecycle order.
func ListAllowedStatusTransitions(current Status, role Role, opts ...TransitionOption) []Status {
	out := make([]Status, 0, len(Statuses))
	for _, next := range Statuses {
		if next == current {
			continue
		}
		if ValidateStatusTransition(current, next, role, opts...).Valid {
			out = append(out, next)
		}
	}
	return out
}
