// ABOUTME: Per-request guard checklist that must fully pass before tenant data is served
// ABOUTME: Each gate in the auth middleware marks its item once satisfied

package tenant

// ChecklistItem names one guard requirement.
type ChecklistItem string

const (
	CheckSessionRequired          ChecklistItem = "session_required"
	CheckTenantMembershipRequired ChecklistItem = "tenant_membership_required"
	CheckTenantContextResolved    ChecklistItem = "tenant_context_resolved"
	CheckTenantRowScopeEnforced   ChecklistItem = "tenant_row_scope_enforced"
)

// ChecklistItems lists every item in evaluation order.
var ChecklistItems = []ChecklistItem{
	CheckSessionRequired,
	CheckTenantMembershipRequired,
	CheckTenantContextResolved,
	CheckTenantRowScopeEnforced,
}

// Checklist records which guard requirements a request has met.
// The zero value fails every item.
type Checklist map[ChecklistItem]bool

// Mark sets item as satisfied.
func (c Checklist) Mark(item ChecklistItem) {
	c[item] = true
}

// Passing reports whether every item is satisfied.
func (c Checklist) Passing() bool {
	for _, item := range ChecklistItems {
		if !c[item] {
			return false
		}
	}
	return true
}

// Missing returns the unsatisfied items in evaluation order.
func (c Checklist) Missing() []ChecklistItem {
	var out []ChecklistItem
	for _, item := range ChecklistItems {
		if !c[item] {
			out = append(out, item)
		}
	}
	return out
}
