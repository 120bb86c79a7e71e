// Package kb holds the knowledge-base vocabulary shared by the query
// executor, the date reconciler and the annotation store.
package kb

import (
	"regexp"
	"strings"

	"github.com/teranos/softwaremap/errors"
)

// PropertyKind is a category of date fact about an entity
type PropertyKind string

// Property kinds observed for software entities
const (
	KindInception         PropertyKind = "inception"
	KindPointInTime       PropertyKind = "point-in-time"
	KindPublication       PropertyKind = "publication"
	KindEarliest          PropertyKind = "earliest"
	KindLatest            PropertyKind = "latest"
	KindProduction        PropertyKind = "production"
	KindStartTime         PropertyKind = "start-time"
	KindFirstInstance     PropertyKind = "first-instance"
	KindCommercialization PropertyKind = "commercialization"
)

// AllKinds lists every property kind in declaration order
var AllKinds = []PropertyKind{
	KindInception,
	KindPointInTime,
	KindPublication,
	KindEarliest,
	KindLatest,
	KindProduction,
	KindStartTime,
	KindFirstInstance,
	KindCommercialization,
}

// Valid reports whether k is one of AllKinds
func (k PropertyKind) Valid() bool {
	for _, known := range AllKinds {
		if k == known {
			return true
		}
	}
	return false
}

func (k PropertyKind) String() string { return string(k) }

// ParseKind converts user input such as "publication" or "start_time" into a PropertyKind
func ParseKind(s string) (PropertyKind, error) {
	k := PropertyKind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	if !k.Valid() {
		return "", errors.WithHintf(
			errors.NewInvalidRequestError("unknown property kind %q", s),
			"valid kinds: %s", strings.Join(KindNames(), ", "),
		)
	}
	return k, nil
}

// KindNames returns the string form of AllKinds
func KindNames() []string {
	names := make([]string, len(AllKinds))
	for i, k := range AllKinds {
		names[i] = string(k)
	}
	return names
}

// Entity identifies one software item
type Entity struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
}

// DateObservation is one raw date fact returned by a query. Immutable once fetched.
type DateObservation struct {
	EntityID string       `json:"entity_id" yaml:"entity_id"`
	Kind     PropertyKind `json:"kind" yaml:"kind"`
	Raw      string       `json:"raw" yaml:"raw"`
}

// BlurbSource tags where a blurb came from
type BlurbSource string

// Blurb sources
const (
	BlurbManual  BlurbSource = "manual"
	BlurbScraped BlurbSource = "scraped"
)

// Valid reports whether s is a known blurb source
func (s BlurbSource) Valid() bool {
	return s == BlurbManual || s == BlurbScraped
}

var entityIDPattern = regexp.MustCompile(`^Q[1-9][0-9]*$`)

// ValidEntityID reports whether id looks like a knowledge-base item ID (Q-number)
func ValidEntityID(id string) bool {
	return entityIDPattern.MatchString(id)
}

// NormalizeEntityID accepts a bare ID, a "wd:" prefixed ID or an entity URI
// (http://www.wikidata.org/entity/Q42) and returns the bare ID
func NormalizeEntityID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "wd:"):
		s = s[len("wd:"):]
	case strings.Contains(s, "/"):
		s = strings.TrimSuffix(s, "/")
		s = s[strings.LastIndexByte(s, '/')+1:]
	}
	if !ValidEntityID(s) {
		return "", false
	}
	return s, true
}
