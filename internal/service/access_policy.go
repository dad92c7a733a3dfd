package service

import "github.com/noah-isme/leadflow-api/internal/models"

// AccessPolicy decides which leads and controls a user may see. It never mutates.
type AccessPolicy struct{}

// NewAccessPolicy constructs the role based policy.
func NewAccessPolicy() AccessPolicy {
	return AccessPolicy{}
}

// VisibleLeads returns every lead for a superadmin and only the leads assigned
// to the user otherwise. Input order is preserved.
func (AccessPolicy) VisibleLeads(leads []models.Lead, user models.User) []models.Lead {
	if user.IsSuperAdmin() {
		out := make([]models.Lead, len(leads))
		copy(out, leads)
		return out
	}
	out := make([]models.Lead, 0, len(leads))
	for _, l := range leads {
		if user.Username != "" && l.AssignedTo == user.Username {
			out = append(out, l)
		}
	}
	return out
}

// CanView reports whether a single lead is visible to the user.
func (AccessPolicy) CanView(lead models.Lead, user models.User) bool {
	return user.IsSuperAdmin() || (user.Username != "" && lead.AssignedTo == user.Username)
}

// CanAssign reports whether the user may reassign leads.
func (AccessPolicy) CanAssign(user models.User) bool {
	return user.IsSuperAdmin()
}

// CanViewAssignee reports whether the assignee column and filter are exposed.
func (AccessPolicy) CanViewAssignee(user models.User) bool {
	return user.IsSuperAdmin()
}

// CanDelete reports whether the user may remove leads.
func (AccessPolicy) CanDelete(user models.User) bool {
	return user.IsSuperAdmin()
}

// ScopeQuery drops filters the user is not allowed to apply.
func (p AccessPolicy) ScopeQuery(q models.LeadQuery, user models.User) models.LeadQuery {
	if !p.CanViewAssignee(user) {
		q.AssignedTo = ""
	}
	return q
}
