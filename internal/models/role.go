package models

import "fmt"

// Role is the closed set of participant roles. Every decision point that
// branches on role must handle all three values exhaustively.
type Role string

const (
	// RoleRequester is a regular account that opens conversations.
	RoleRequester Role = "requester"
	// RoleResponder is an account eligible to be assigned conversations.
	RoleResponder Role = "responder"
	// RoleObserver is a privileged account that may view or join any
	// conversation and issue direct assignments.
	RoleObserver Role = "observer"
)

// ParseRole validates a raw role string.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleRequester, RoleResponder, RoleObserver:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Assignable reports whether the load-balanced selector may pick this role.
func (r Role) Assignable() bool {
	switch r {
	case RoleResponder:
		return true
	case RoleRequester, RoleObserver:
		return false
	}
	return false
}

// Privileged reports whether the role may join any conversation, end any
// conversation and name explicit assignment targets.
func (r Role) Privileged() bool {
	switch r {
	case RoleObserver:
		return true
	case RoleRequester, RoleResponder:
		return false
	}
	return false
}

// CanRequestAnonymity reports whether the anonymity flag is meaningful for
// this role. Only requesters hide their identity from co-participants.
func (r Role) CanRequestAnonymity() bool {
	switch r {
	case RoleRequester:
		return true
	case RoleResponder, RoleObserver:
		return false
	}
	return false
}
