// Package ranking scores pharmacies against a medication search and orders
// them by the criterion the user picked.
package ranking

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"pharmfinder/m/domain"
)

// Status is the traffic-light availability of a pharmacy for a search.
type Status string

const (
	StatusComplete Status = "complete"
	StatusPartial  Status = "partial"
	StatusLimited  Status = "limited"
)

// Label is the French wording shown next to the status.
func (s Status) Label() string {
	switch s {
	case StatusComplete:
		return "Tous disponibles"
	case StatusPartial:
		return "Partiellement disponible"
	default:
		return "Peu disponible"
	}
}

// SortBy is the user-selected ordering.
type SortBy string

const (
	SortNone         SortBy = ""
	SortDistance     SortBy = "distance"
	SortPrice        SortBy = "price"
	SortRating       SortBy = "rating"
	SortStock        SortBy = "stock"
	SortAvailability SortBy = "availability"
)

// ParseSortBy accepts the sort keys of both the web and the mobile shells.
func ParseSortBy(raw string) (SortBy, error) {
	switch s := SortBy(strings.ToLower(strings.TrimSpace(raw))); s {
	case SortNone, SortDistance, SortPrice, SortRating, SortStock:
		return s, nil
	case SortAvailability:
		return SortStock, nil
	default:
		return SortNone, fmt.Errorf("unknown sort %q", raw)
	}
}

// Mode tells Rank whether the result comes from a multi-medication search.
type Mode int

const (
	ModeSingle Mode = iota
	ModeMulti
)

// Assessment is the availability of one pharmacy for a search.
type Assessment struct {
	MatchCount    int     `json:"match_count"`
	TotalSearched int     `json:"total_searched"`
	Completeness  float64 `json:"completeness"`
	Score         int     `json:"score"`
	Status        Status  `json:"status"`
	StatusLabel   string  `json:"status_label"`
}

// Assess scores one pharmacy: its match count is the number of matched stock
// lines.
func Assess(p domain.Pharmacy, totalSearched int) Assessment {
	return assessCount(len(p.Medications), totalSearched)
}

func assessCount(match, total int) Assessment {
	a := Assessment{MatchCount: match, TotalSearched: total}
	if total > 0 {
		a.Completeness = float64(match) / float64(total)
	}
	a.Score = int(math.Round(a.Completeness * 100))
	switch {
	case match == total:
		a.Status = StatusComplete
	case float64(match) > float64(total)/2:
		a.Status = StatusPartial
	default:
		a.Status = StatusLimited
	}
	a.StatusLabel = a.Status.Label()
	return a
}

// Ranked is a pharmacy with its view fields and, for multi-search, its
// assessment.
type Ranked struct {
	View
	Availability *Assessment `json:"availability,omitempty"`
}

// Options configures Rank.
type Options struct {
	Mode          Mode
	SortBy        SortBy
	TotalSearched int
}

// Rank orders pharmacies. In multi mode the match count (descending) is the
// primary order and the user criterion then reorders with a stable sort, so
// equal keys keep the match-count order. Input order breaks remaining ties.
func Rank(pharmacies []domain.Pharmacy, opts Options) []Ranked {
	out := make([]Ranked, 0, len(pharmacies))
	for _, p := range pharmacies {
		r := Ranked{View: NewView(p)}
		if opts.Mode == ModeMulti {
			a := Assess(p, opts.TotalSearched)
			r.Availability = &a
		}
		out = append(out, r)
	}

	if opts.Mode == ModeMulti {
		slices.SortStableFunc(out, func(a, b Ranked) int {
			return b.Availability.MatchCount - a.Availability.MatchCount
		})
	}
	if cmp := comparator(opts.SortBy); cmp != nil {
		slices.SortStableFunc(out, cmp)
	}
	return out
}

func comparator(by SortBy) func(a, b Ranked) int {
	switch by {
	case SortDistance:
		return func(a, b Ranked) int {
			return compareMissingLast(knownDistance(a.Pharmacy.DistanceKm), knownDistance(b.Pharmacy.DistanceKm))
		}
	case SortPrice:
		return func(a, b Ranked) int {
			return compareMissingLast(floatPtr(a.Pharmacy.MedicationPrice), floatPtr(b.Pharmacy.MedicationPrice))
		}
	case SortRating:
		return func(a, b Ranked) int {
			return compareFloat(b.Rating, a.Rating)
		}
	case SortStock, SortAvailability:
		return func(a, b Ranked) int {
			return compareFloat(float64(b.Stock), float64(a.Stock))
		}
	default:
		return nil
	}
}

// knownDistance drops distances of zero or less, which the view shows as N/A.
func knownDistance(d *float64) *float64 {
	if d == nil || *d <= 0 {
		return nil
	}
	return d
}

// compareMissingLast orders present values ascending, missing ones last.
func compareMissingLast(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return compareFloat(*a, *b)
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func floatPtr(v *int64) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}
