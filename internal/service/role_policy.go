package service

import "github.com/pesio-ai/be-plt-taskhub-identity/internal/repository"

// Membership describes how an identity relates to its company at registration
type Membership int

const (
	// MembershipOwner is a self-registration that creates or owns the company
	MembershipOwner Membership = iota
	// MembershipInvitee is a member added to an existing company
	MembershipInvitee
)

var roleRank = map[repository.Role]int{
	repository.RoleUser:    1,
	repository.RoleManager: 2,
	repository.RoleAdmin:   3,
}

// RoleFor returns the role granted to a new identity. Roles requested by the
// client are never consulted.
func RoleFor(m Membership) repository.Role {
	if m == MembershipOwner {
		return repository.RoleManager
	}
	return repository.RoleUser
}

// ResolveRole returns the role of a pending identity being registered again.
// It never ranks below the role the identity already has.
func ResolveRole(current repository.Role, m Membership) repository.Role {
	next := RoleFor(m)
	if roleRank[current] > roleRank[next] {
		return current
	}
	return next
}
