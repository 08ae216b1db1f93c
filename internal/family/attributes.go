// ABOUTME: Person attribute CRUD on the PersonAttributes tab
// ABOUTME: Keeps at most one primary attribute per person and type

package family

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/2389/famlink/internal/keys"
	"github.com/2389/famlink/internal/records"
	"github.com/2389/famlink/internal/tenant"
)

const attributeIDColumn = "attribute_id"

// AttributeTypePhoto marks attributes whose value is a blob file id.
const AttributeTypePhoto = "photo"

// Attribute is one row of the PersonAttributes tab.
type Attribute struct {
	AttributeID   string `json:"attributeId"`
	PersonID      string `json:"personId"`
	AttributeType string `json:"attributeType"`
	ValueText     string `json:"valueText"`
	ValueJSON     string `json:"valueJson"`
	Label         string `json:"label"`
	IsPrimary     bool   `json:"isPrimary"`
	SortOrder     int    `json:"sortOrder"`
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate"`
	Visibility    string `json:"visibility"`
	Notes         string `json:"notes"`
	TenantKey     string `json:"tenantKey"`
}

func attributeFromRecord(r records.Record) Attribute {
	f := fields(r)
	order, _ := strconv.Atoi(strings.TrimSpace(f["sort_order"]))
	return Attribute{
		AttributeID:   strings.TrimSpace(f["attribute_id"]),
		PersonID:      strings.TrimSpace(f["person_id"]),
		AttributeType: strings.ToLower(strings.TrimSpace(f["attribute_type"])),
		ValueText:     f["value_text"],
		ValueJSON:     f["value_json"],
		Label:         f["label"],
		IsPrimary:     parseBool(f["is_primary"]),
		SortOrder:     order,
		StartDate:     f["start_date"],
		EndDate:       f["end_date"],
		Visibility:    f["visibility"],
		Notes:         f["notes"],
		TenantKey:     strings.TrimSpace(f[records.TenantColumn]),
	}
}

// AttributeInput creates an attribute.
type AttributeInput struct {
	AttributeType string `json:"attributeType" validate:"required,min=1,max=80"`
	ValueText     string `json:"valueText" validate:"required,min=1,max=4000"`
	Label         string `json:"label" validate:"max=2000"`
	ValueJSON     string `json:"valueJson" validate:"max=2000"`
	IsPrimary     bool   `json:"isPrimary"`
	SortOrder     int    `json:"sortOrder" validate:"gte=0,lte=9999"`
	StartDate     string `json:"startDate" validate:"max=32"`
	EndDate       string `json:"endDate" validate:"max=32"`
	Visibility    string `json:"visibility" validate:"max=32"`
	Notes         string `json:"notes" validate:"max=2000"`
}

// AttributePatch updates the supplied fields of an attribute.
type AttributePatch struct {
	AttributeType *string `json:"attributeType" validate:"omitnil,min=1,max=80"`
	ValueText     *string `json:"valueText" validate:"omitnil,min=1,max=4000"`
	Label         *string `json:"label" validate:"omitnil,max=2000"`
	ValueJSON     *string `json:"valueJson" validate:"omitnil,max=2000"`
	IsPrimary     *bool   `json:"isPrimary"`
	SortOrder     *int    `json:"sortOrder" validate:"omitnil,gte=0,lte=9999"`
	StartDate     *string `json:"startDate" validate:"omitnil,max=32"`
	EndDate       *string `json:"endDate" validate:"omitnil,max=32"`
	Visibility    *string `json:"visibility" validate:"omitnil,max=32"`
	Notes         *string `json:"notes" validate:"omitnil,max=2000"`
}

func trimPtr(p *string) {
	if p != nil {
		*p = strings.TrimSpace(*p)
	}
}

// Attributes returns a person's attributes ordered by type then sort order.
func (s *Service) Attributes(ctx context.Context, tenantKey, personID string) ([]Attribute, error) {
	if _, err := s.Person(ctx, tenantKey, personID); err != nil {
		return nil, err
	}
	return s.attributes(ctx, tenantKey, personID)
}

func (s *Service) attributes(ctx context.Context, tenantKey, personID string) ([]Attribute, error) {
	recs, err := s.store.List(ctx, TablePersonAttributes, tenantKey)
	if err != nil {
		return nil, fmt.Errorf("reading attributes: %w", err)
	}

	out := make([]Attribute, 0)
	for _, r := range recs {
		a := attributeFromRecord(r)
		if a.AttributeID == "" || a.PersonID != personID {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AttributeType != out[j].AttributeType {
			return out[i].AttributeType < out[j].AttributeType
		}
		return out[i].SortOrder < out[j].SortOrder
	})
	return out, nil
}

// clearPrimary unsets is_primary on every attribute of attrType except keep.
func (s *Service) clearPrimary(ctx context.Context, tenantKey string, current []Attribute, attrType, keep string) error {
	var tasks []task
	for _, a := range current {
		if a.AttributeID == keep || a.AttributeType != attrType || !a.IsPrimary {
			continue
		}
		id := a.AttributeID
		tasks = append(tasks, task{op: "clear_primary", id: id, run: func(ctx context.Context) error {
			_, err := s.store.Update(ctx, TablePersonAttributes, id,
				map[string]string{"is_primary": formatBool(false)}, attributeIDColumn, tenantKey)
			return err
		}})
	}
	if failures := runAll(ctx, tasks); len(failures) > 0 {
		return &BatchError{Failures: failures}
	}
	return nil
}

// CreateAttribute adds an attribute to a person.
func (s *Service) CreateAttribute(ctx context.Context, tenantKey, personID string, in AttributeInput) (*Attribute, error) {
	in.AttributeType = strings.ToLower(strings.TrimSpace(in.AttributeType))
	in.ValueText = strings.TrimSpace(in.ValueText)
	in.Visibility = strings.ToLower(strings.TrimSpace(in.Visibility))
	if in.Visibility == "" {
		in.Visibility = "family"
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	current, err := s.Attributes(ctx, tenantKey, personID)
	if err != nil {
		return nil, err
	}
	if in.IsPrimary {
		if err := s.clearPrimary(ctx, tenantKey, current, in.AttributeType, ""); err != nil {
			return nil, err
		}
	}

	rec, err := s.store.Create(ctx, TablePersonAttributes, map[string]string{
		"attribute_id":       keys.AttributeID(),
		"person_id":          personID,
		"attribute_type":     in.AttributeType,
		"value_text":         in.ValueText,
		"value_json":         strings.TrimSpace(in.ValueJSON),
		"label":              strings.TrimSpace(in.Label),
		"is_primary":         formatBool(in.IsPrimary),
		"sort_order":         strconv.Itoa(in.SortOrder),
		"start_date":         strings.TrimSpace(in.StartDate),
		"end_date":           strings.TrimSpace(in.EndDate),
		"visibility":         in.Visibility,
		"notes":              strings.TrimSpace(in.Notes),
		records.TenantColumn: tenant.NormalizeKey(tenantKey),
	}, tenantKey)
	if err != nil {
		return nil, err
	}
	a := attributeFromRecord(*rec)
	return &a, nil
}

// UpdateAttribute applies patch to one of a person's attributes.
func (s *Service) UpdateAttribute(ctx context.Context, tenantKey, personID, attributeID string, patch AttributePatch) (*Attribute, error) {
	trimPtr(patch.AttributeType)
	trimPtr(patch.ValueText)
	trimPtr(patch.Visibility)
	if err := s.validate.Struct(patch); err != nil {
		return nil, err
	}

	current, err := s.Attributes(ctx, tenantKey, personID)
	if err != nil {
		return nil, err
	}
	// The row is found without the tenant filter so a foreign row is
	// refused as such instead of reported missing.
	rec, err := s.store.Lookup(ctx, TablePersonAttributes, attributeID, attributeIDColumn, tenantKey)
	if err != nil {
		return nil, err
	}
	if err := tenant.AssertScopedValue(rec.Get(records.TenantColumn), tenantKey); err != nil {
		return nil, err
	}
	existing := attributeFromRecord(*rec)
	if existing.PersonID != personID {
		return nil, fmt.Errorf("%w: attribute %q", records.ErrRecordNotFound, attributeID)
	}

	nextType := existing.AttributeType
	if patch.AttributeType != nil {
		nextType = strings.ToLower(*patch.AttributeType)
	}
	if patch.IsPrimary != nil && *patch.IsPrimary {
		if err := s.clearPrimary(ctx, tenantKey, current, nextType, attributeID); err != nil {
			return nil, err
		}
	}

	payload := map[string]string{}
	set := func(col string, v *string) {
		if v != nil {
			payload[col] = strings.TrimSpace(*v)
		}
	}
	if patch.AttributeType != nil {
		payload["attribute_type"] = nextType
	}
	set("value_text", patch.ValueText)
	set("value_json", patch.ValueJSON)
	set("label", patch.Label)
	if patch.IsPrimary != nil {
		payload["is_primary"] = formatBool(*patch.IsPrimary)
	}
	if patch.SortOrder != nil {
		payload["sort_order"] = strconv.Itoa(*patch.SortOrder)
	}
	set("start_date", patch.StartDate)
	set("end_date", patch.EndDate)
	if patch.Visibility != nil {
		payload["visibility"] = strings.ToLower(*patch.Visibility)
	}
	set("notes", patch.Notes)

	rec, err = s.store.Update(ctx, TablePersonAttributes, attributeID, payload, attributeIDColumn, tenantKey)
	if err != nil {
		return nil, err
	}
	a := attributeFromRecord(*rec)
	return &a, nil
}

// DeleteAttribute removes one of a person's attributes. It reports false
// when the person has no such attribute.
func (s *Service) DeleteAttribute(ctx context.Context, tenantKey, personID, attributeID string) (bool, error) {
	current, err := s.attributes(ctx, tenantKey, personID)
	if err != nil {
		return false, err
	}
	for _, a := range current {
		if a.AttributeID == attributeID {
			return s.store.Delete(ctx, TablePersonAttributes, attributeID, attributeIDColumn, tenantKey)
		}
	}
	return false, nil
}
