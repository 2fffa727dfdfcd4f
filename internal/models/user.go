package models

// DefaultTenant is used when a request or record carries no tenant.
const DefaultTenant = "default"

// UserContext identifies the requester. It is supplied per request and never persisted.
type UserContext struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenant_id"`
	Roles    []string `json:"roles"`
}

// Tenant returns the tenant id, falling back to DefaultTenant.
func (u UserContext) Tenant() string {
	if u.TenantID == "" {
		return DefaultTenant
	}
	return u.TenantID
}

// CanAccess applies the tenant and role rule: same tenant, and either no role
// restriction or at least one shared role.
func (u UserContext) CanAccess(tenantID string, allowedRoles []string) bool {
	if tenantID == "" {
		tenantID = DefaultTenant
	}
	if tenantID != u.Tenant() {
		return false
	}
	if len(allowedRoles) == 0 {
		return true
	}
	for _, allowed := range allowedRoles {
		for _, role := range u.Roles {
			if allowed == role {
				return true
			}
		}
	}
	return false
}

// DocumentFilter selects documents from a DocumentStore.
type DocumentFilter struct {
	TenantID   string
	ActiveOnly bool
	// Roles, when non-nil, restricts results to documents visible to these roles.
	Roles []string
	IDs   []string
}

// RuleFilter selects rules from a RuleStore.
type RuleFilter struct {
	TenantID   string
	ActiveOnly bool
	Roles      []string
}

// AccessRoles returns the roles to filter by. It is never nil, so a user
// without roles only sees unrestricted records.
func (u UserContext) AccessRoles() []string {
	if u.Roles == nil {
		return []string{}
	}
	return u.Roles
}
