// ABOUTME: Canonical header rows for the tabs the family service writes
// ABOUTME: Used to provision new workbooks; reads still accept column aliases

package family

import "github.com/2389/famlink/internal/records"

// TabLayout is the header row a freshly provisioned tab starts with.
type TabLayout struct {
	Table   string
	Headers []string
}

// Layout lists the graph and directory tabs in provisioning order.
func Layout() []TabLayout {
	return []TabLayout{
		{Table: TablePeople, Headers: []string{
			personIDColumn, "display_name", "birth_date", "phones", "address", "hobbies",
			"notes", "photo_file_id", "is_pinned", "relationships", records.TenantColumn,
		}},
		{Table: TableRelationships, Headers: []string{
			relIDCols[0], relFromCols[0], relToCols[0], relTypeCols[0], records.TenantColumn,
		}},
		{Table: TableFamilyUnits, Headers: []string{
			unitIDCols[0], unitP1Cols[0], unitP2Cols[0], records.TenantColumn,
		}},
		{Table: TablePersonAttributes, Headers: []string{
			attributeIDColumn, "person_id", "attribute_type", "value_text", "value_json", "label",
			"is_primary", "sort_order", "start_date", "end_date", "visibility", "notes", records.TenantColumn,
		}},
	}
}
