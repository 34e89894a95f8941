package ranking

import (
	"fmt"
	"strings"

	"pharmfinder/m/domain"
)

// View is a pharmacy with the derived fields the shells display.
type View struct {
	domain.Pharmacy
	Distance  string  `json:"distance"`
	OpenHours string  `json:"open_hours"`
	Open      bool    `json:"open"`
	Rating    float64 `json:"rating"`
	Stock     int64   `json:"stock"`
}

func NewView(p domain.Pharmacy) View {
	v := View{
		Pharmacy:  p,
		Distance:  "N/A",
		OpenHours: "Horaires non disponibles",
		Rating:    p.RatingValue(),
	}
	if p.DistanceKm != nil && *p.DistanceKm > 0 {
		v.Distance = fmt.Sprintf("%.1f km", *p.DistanceKm)
	}
	if p.OpeningTime != nil && p.ClosingTime != nil && *p.OpeningTime != "" && *p.ClosingTime != "" {
		v.OpenHours = clock(*p.OpeningTime) + " - " + clock(*p.ClosingTime)
	}
	if p.IsOpen != nil {
		v.Open = *p.IsOpen
	}
	if p.MedicationStock != nil {
		v.Stock = *p.MedicationStock
	}
	if v.Insurances == nil {
		v.Insurances = domain.InsuranceList{}
	}
	return v
}

// clock trims "08:00:00" to "08:00".
func clock(t string) string {
	if len(t) > 5 {
		return t[:5]
	}
	return t
}

// InsuranceAll and InsuranceSpecial are the two filter values with a
// meaning of their own; any other value is matched against accepted
// insurances.
const (
	InsuranceAll     = "all"
	InsuranceSpecial = "special"
)

// FilterInsurance keeps the pharmacies accepting filter. Matching is a
// case-insensitive substring test on accepted insurances.
func FilterInsurance(pharmacies []domain.Pharmacy, filter string) []domain.Pharmacy {
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter == "" || filter == InsuranceAll {
		return pharmacies
	}
	out := make([]domain.Pharmacy, 0, len(pharmacies))
	for _, p := range pharmacies {
		if filter == InsuranceSpecial && p.SpecialInsurance != nil && *p.SpecialInsurance != "" {
			out = append(out, p)
			continue
		}
		for _, ins := range p.Insurances {
			if strings.Contains(strings.ToLower(ins), filter) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}
