// Package domain holds the syncable entity families shared by the server
// and the offline client, together with the ticket status state machine
// that both sides enforce identically.
package domain

import "fmt"

// Status is a ticket lifecycle state.
type Status string

const (
	StatusNew        Status = "New"
	StatusScheduled  Status = "Scheduled"
	StatusInProgress Status = "InProgress"
	StatusDone       Status = "Done"
	StatusInvoiced   Status = "Invoiced"
	StatusPaid       Status = "Paid"
	StatusCanceled   Status = "Canceled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusNew,
	StatusScheduled,
	StatusInProgress,
	StatusDone,
	StatusInvoiced,
	StatusPaid,
	StatusCanceled,
}

func (s Status) String() string { return string(s) }

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// ParseStatus converts a wire value into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown ticket status %q", s)
	}
	return st, nil
}

// Role is the privilege level a user holds at one location.
type Role string

const (
	RoleTechnician Role = "Technician"
	RoleManager    Role = "Manager"
	RoleOwner      Role = "Owner"
)

var Roles = []Role{RoleTechnician, RoleManager, RoleOwner}

func (r Role) String() string { return string(r) }

func (r Role) Valid() bool {
	switch r {
	case RoleTechnician, RoleManager, RoleOwner:
		return true
	}
	return false
}

// AtLeastManager reports whether r is Manager or Owner.
func (r Role) AtLeastManager() bool {
	return r == RoleManager || r == RoleOwner
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
