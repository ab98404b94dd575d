// Package service provides the business logic layer (use cases):
// the family unit linker, the client registry and the permission gate
// both of them consult before every mutation.
package service

import (
	"github.com/boddenberg/eternity-backoffice-go/internal/domain"
)

// CanManageFamily reports whether actor may mutate the family unit (and the
// profile) of subject: admins always may, representatives only for clients
// they own. Any other role is refused. It has no side effects and must be
// called on every mutation.
func CanManageFamily(actor domain.Actor, subject *domain.Client) bool {
	switch actor.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleRepresentative:
		// an anonymous actor never owns an unassigned client
		return actor.ID != "" && subject.RepresentativeID == actor.ID
	default:
		return false
	}
}

// CanManageRepresentatives reports whether actor may create or edit
// back-office users.
func CanManageRepresentatives(actor domain.Actor) bool {
	return actor.IsAdmin()
}

func denied(actor domain.Actor, subjectID, action string) error {
	return &domain.ErrPermissionDenied{ActorID: actor.ID, SubjectID: subjectID, Action: action}
}
