package authz

import (
	"taskboard-backend/pkg/apperr"
	"taskboard-backend/pkg/models"
)

// SameOrg reports whether two organization references point at the same tenant.
// An empty reference never matches.
func SameOrg(a, b string) bool {
	return a != "" && a == b
}

// AssertSameOrg fails with a CrossOrgError when the organizations differ.
func AssertSameOrg(a, b string) error {
	if !SameOrg(a, b) {
		return apperr.CrossOrg("", "", a, b)
	}
	return nil
}

// AssertInOrg checks that an entity belongs to the actor's organization,
// recording which entity crossed the boundary.
func AssertInOrg(actor models.Actor, entity, id, orgID string) error {
	if !SameOrg(actor.OrganizationID, orgID) {
		return apperr.CrossOrg(entity, id, actor.OrganizationID, orgID)
	}
	return nil
}
