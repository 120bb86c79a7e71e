// Package reconcile chooses one canonical date per entity from the raw date
// observations of several property kinds.
package reconcile

import (
	"sort"
	"time"

	"github.com/teranos/softwaremap/errors"
	"github.com/teranos/softwaremap/kb"
)

// Priority orders property kinds from most to least authoritative.
// Publication and inception dominate result volume and lead the list.
var Priority = []kb.PropertyKind{
	kb.KindPublication,
	kb.KindInception,
	kb.KindPointInTime,
	kb.KindStartTime,
	kb.KindEarliest,
	kb.KindFirstInstance,
	kb.KindProduction,
	kb.KindCommercialization,
	kb.KindLatest,
}

// DefaultDisputeThresholdYears is the spread above which a choice is flagged
const DefaultDisputeThresholdYears = 10

// Rank returns the position of kind in Priority (0 = highest), or -1
func Rank(kind kb.PropertyKind) int {
	for i, k := range Priority {
		if k == kind {
			return i
		}
	}
	return -1
}

// CanonicalDate is the single date chosen for an entity
type CanonicalDate struct {
	EntityID string          `json:"entity_id" yaml:"entity_id"`
	Date     time.Time       `json:"date" yaml:"date"`
	Kind     kb.PropertyKind `json:"kind" yaml:"kind"`
	// Disputed is set when observations of Kind lie further apart than the
	// reconciler's threshold. Date is still the earliest of them.
	Disputed bool `json:"disputed" yaml:"disputed"`
	// Candidates is how many valid observations of Kind were considered
	Candidates int `json:"candidates" yaml:"candidates"`
}

// Reconciler applies the priority policy
type Reconciler struct {
	// DisputeThresholdYears flags disagreement larger than this; 0 disables it
	DisputeThresholdYears int
}

// New returns a Reconciler with the given dispute threshold
func New(disputeThresholdYears int) *Reconciler {
	return &Reconciler{DisputeThresholdYears: disputeThresholdYears}
}

// Reconcile uses the default dispute threshold
func Reconcile(entityID string, observations []kb.DateObservation) (*CanonicalDate, []error) {
	return New(DefaultDisputeThresholdYears).Reconcile(entityID, observations)
}

type parsed struct {
	kind kb.PropertyKind
	date time.Time
}

// Reconcile selects the canonical date for entityID. Observations that cannot
// be used are discarded and reported in the returned slice; they never stop
// reconciliation of the rest. No usable observation yields nil.
func (r *Reconciler) Reconcile(entityID string, observations []kb.DateObservation) (*CanonicalDate, []error) {
	var errs []error
	valid := make([]parsed, 0, len(observations))

	for _, obs := range observations {
		if obs.EntityID != entityID {
			errs = append(errs, errors.NewInvalidRequestError("observation for %s passed while reconciling %s", obs.EntityID, entityID))
			continue
		}
		if Rank(obs.Kind) < 0 {
			errs = append(errs, errors.NewMalformedResultError("entity %s: unknown property kind %q", entityID, obs.Kind))
			continue
		}
		date, err := ParseDate(obs.Raw)
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "entity %s %s", entityID, obs.Kind))
			continue
		}
		valid = append(valid, parsed{kind: obs.Kind, date: date})
	}

	if len(valid) == 0 {
		return nil, errs
	}

	// Highest-priority kind first, earliest date within a kind
	sort.SliceStable(valid, func(i, j int) bool {
		ri, rj := Rank(valid[i].kind), Rank(valid[j].kind)
		if ri != rj {
			return ri < rj
		}
		return valid[i].date.Before(valid[j].date)
	})

	best := valid[0]
	latest := best.date
	candidates := 0
	for _, p := range valid {
		if p.kind != best.kind {
			break
		}
		candidates++
		latest = p.date
	}

	return &CanonicalDate{
		EntityID:   entityID,
		Date:       best.date,
		Kind:       best.kind,
		Disputed:   r.disputed(best.date, latest),
		Candidates: candidates,
	}, errs
}

func (r *Reconciler) disputed(earliest, latest time.Time) bool {
	if r.DisputeThresholdYears <= 0 {
		return false
	}
	return latest.After(earliest.AddDate(r.DisputeThresholdYears, 0, 0))
}
