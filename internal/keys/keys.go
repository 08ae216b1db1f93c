// ABOUTME: Deterministic and random id derivation for workbook records
// ABOUTME: Uses domain-separated SHA-256 over canonical tuples

package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/2389/famlink/internal/tenant"
)

// Domain prefixes keep hashes of different record kinds disjoint.
// The version suffix allows a future algorithm change.
const (
	DomainRelationship = "famlink/relationship/v1"
	DomainFamilyUnit   = "famlink/family-unit/v1"
)

// Id prefixes.
const (
	RelationshipPrefix = "rel_"
	FamilyUnitPrefix   = "fu_"
	AttributePrefix    = "attr_"
)

// hexLen is the number of hex characters kept from the digest (96 bits).
const hexLen = 24

// hashWithDomain computes SHA256(domain + 0x00 + part1 + 0x00 + part2 ...).
// Every part is NFC-normalized and trimmed first.
func hashWithDomain(domain string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(domain))
	for _, p := range parts {
		h.Write([]byte{0x00})
		h.Write([]byte(canonical(p)))
	}
	return hex.EncodeToString(h.Sum(nil))[:hexLen]
}

func canonical(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// RelationshipID returns the id of the directed edge from -> to of relType.
func RelationshipID(tenantKey, fromID, toID, relType string) string {
	return RelationshipPrefix + hashWithDomain(DomainRelationship,
		tenant.NormalizeKey(tenantKey),
		fromID,
		toID,
		strings.ToLower(canonical(relType)),
	)
}

// FamilyUnitID returns the id of the unit pairing a and b in either order.
func FamilyUnitID(tenantKey, a, b string) string {
	pair := []string{canonical(a), canonical(b)}
	sort.Strings(pair)
	return FamilyUnitPrefix + hashWithDomain(DomainFamilyUnit,
		tenant.NormalizeKey(tenantKey),
		pair[0],
		pair[1],
	)
}

// SortedPair returns a and b in the order family units store them.
func SortedPair(a, b string) (string, string) {
	a, b = canonical(a), canonical(b)
	if b < a {
		return b, a
	}
	return a, b
}

// AttributeID returns a fresh random attribute id.
func AttributeID() string {
	return AttributePrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s and collapses every run of other characters to "-".
func Slugify(s string) string {
	s = nonSlug.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(s, "-")
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
}

// NormalizeDate returns raw as YYYY-MM-DD, or "" when it cannot be parsed.
func NormalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// PersonID builds YYYYMMDD-name-slug, or "" when either part is unusable.
func PersonID(fullName, birthDate string) string {
	slug := Slugify(fullName)
	date := strings.ReplaceAll(NormalizeDate(birthDate), "-", "")
	if slug == "" || date == "" {
		return ""
	}
	return date + "-" + slug
}
