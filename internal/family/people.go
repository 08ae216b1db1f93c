// ABOUTME: Person directory reads and writes on the People tab
// ABOUTME: Sorting uses locale collation; new ids come from keys.PersonID

package family

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/2389/famlink/internal/keys"
	"github.com/2389/famlink/internal/records"
	"github.com/2389/famlink/internal/tenant"
)

const personIDColumn = "person_id"

// Person is one row of the People tab.
type Person struct {
	PersonID      string   `json:"personId"`
	DisplayName   string   `json:"displayName"`
	BirthDate     string   `json:"birthDate"`
	Phones        string   `json:"phones"`
	Address       string   `json:"address"`
	Hobbies       string   `json:"hobbies"`
	Notes         string   `json:"notes"`
	PhotoFileID   string   `json:"photoFileId"`
	IsPinned      bool     `json:"isPinned"`
	Relationships []string `json:"relationships"`
}

func personFromRecord(r records.Record) Person {
	f := fields(r)
	return Person{
		PersonID:      strings.TrimSpace(f["person_id"]),
		DisplayName:   f["display_name"],
		BirthDate:     f["birth_date"],
		Phones:        f["phones"],
		Address:       f["address"],
		Hobbies:       f["hobbies"],
		Notes:         f["notes"],
		PhotoFileID:   f["photo_file_id"],
		IsPinned:      parseBool(f["is_pinned"]) || parseBool(f["is_pinned_viewer"]),
		Relationships: splitList(f["relationships"]),
	}
}

// People returns the tenant's people sorted by display name.
// Rows without a person id are skipped.
func (s *Service) People(ctx context.Context, tenantKey string) ([]Person, error) {
	recs, err := s.store.List(ctx, TablePeople, tenantKey)
	if err != nil {
		return nil, fmt.Errorf("reading people: %w", err)
	}

	people := make([]Person, 0, len(recs))
	for _, r := range recs {
		p := personFromRecord(r)
		if p.PersonID == "" {
			continue
		}
		people = append(people, p)
	}

	c := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(people, func(i, j int) bool {
		return c.CompareString(people[i].DisplayName, people[j].DisplayName) < 0
	})
	return people, nil
}

// Person returns one person by id.
func (s *Service) Person(ctx context.Context, tenantKey, personID string) (*Person, error) {
	rec, err := s.store.Get(ctx, TablePeople, personID, personIDColumn, tenantKey)
	if err != nil {
		return nil, err
	}
	p := personFromRecord(*rec)
	return &p, nil
}

// PersonUpdate is the editable part of a person.
type PersonUpdate struct {
	DisplayName string `json:"display_name" validate:"required,min=1,max=140"`
	Phones      string `json:"phones" validate:"max=2000"`
	Address     string `json:"address" validate:"max=2000"`
	Hobbies     string `json:"hobbies" validate:"max=2000"`
	Notes       string `json:"notes" validate:"max=2000"`
}

func (u *PersonUpdate) trim() {
	u.DisplayName = strings.TrimSpace(u.DisplayName)
	u.Phones = strings.TrimSpace(u.Phones)
	u.Address = strings.TrimSpace(u.Address)
	u.Hobbies = strings.TrimSpace(u.Hobbies)
	u.Notes = strings.TrimSpace(u.Notes)
}

// UpdatePerson rewrites the editable fields of a person.
func (s *Service) UpdatePerson(ctx context.Context, tenantKey, personID string, in PersonUpdate) (*Person, error) {
	in.trim()
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	rec, err := s.store.Update(ctx, TablePeople, personID, map[string]string{
		"display_name": in.DisplayName,
		"phones":       in.Phones,
		"address":      in.Address,
		"hobbies":      in.Hobbies,
		"notes":        in.Notes,
	}, personIDColumn, tenantKey)
	if err != nil {
		return nil, err
	}
	p := personFromRecord(*rec)
	return &p, nil
}

// NewPerson is the input for CreatePerson.
type NewPerson struct {
	FullName    string `json:"fullName" validate:"required,min=1,max=140"`
	BirthDate   string `json:"birthDate" validate:"required,max=32"`
	DisplayName string `json:"displayName" validate:"max=140"`
	Phones      string `json:"phones" validate:"max=2000"`
	Address     string `json:"address" validate:"max=2000"`
	Hobbies     string `json:"hobbies" validate:"max=2000"`
	Notes       string `json:"notes" validate:"max=2000"`
}

// CreatePerson appends a person with id YYYYMMDD-name-slug.
func (s *Service) CreatePerson(ctx context.Context, tenantKey string, in NewPerson) (*Person, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	id := keys.PersonID(in.FullName, in.BirthDate)
	if id == "" {
		return nil, fmt.Errorf("%w: cannot derive person id from name %q and birth date %q",
			ErrInvalidInput, in.FullName, in.BirthDate)
	}

	if _, err := s.store.Get(ctx, TablePeople, id, personIDColumn, tenantKey); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrPersonExists, id)
	} else if !errors.Is(err, records.ErrRecordNotFound) {
		return nil, err
	}

	display := in.DisplayName
	if display == "" {
		display = in.FullName
	}

	rec, err := s.store.Create(ctx, TablePeople, map[string]string{
		"person_id":          id,
		"display_name":       display,
		"birth_date":         keys.NormalizeDate(in.BirthDate),
		"phones":             strings.TrimSpace(in.Phones),
		"address":            strings.TrimSpace(in.Address),
		"hobbies":            strings.TrimSpace(in.Hobbies),
		"notes":              strings.TrimSpace(in.Notes),
		records.TenantColumn: tenant.NormalizeKey(tenantKey),
	}, tenantKey)
	if err != nil {
		return nil, err
	}

	s.logger.Info("person created", "tenant", tenant.NormalizeKey(tenantKey), "person", id)
	p := personFromRecord(*rec)
	return &p, nil
}
