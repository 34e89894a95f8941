package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pharmfinder/m/domain"
)

func TestNewView_DerivedFields(t *testing.T) {
	v := NewView(domain.Pharmacy{
		ID:          1,
		Rating:      "4.2",
		OpeningTime: ptr("08:00:00"),
		ClosingTime: ptr("20:30:00"),
		DistanceKm:  ptr(1.26),
		IsOpen:      ptr(true),
	})
	assert.Equal(t, "1.3 km", v.Distance)
	assert.Equal(t, "08:00 - 20:30", v.OpenHours)
	assert.True(t, v.Open)
	assert.Equal(t, 4.2, v.Rating)
	assert.NotNil(t, v.Insurances)

	empty := NewView(domain.Pharmacy{ID: 2, OpeningTime: ptr("08:00:00")})
	assert.Equal(t, "N/A", empty.Distance)
	assert.Equal(t, "Horaires non disponibles", empty.OpenHours)
}

func TestFilterInsurance(t *testing.T) {
	in := []domain.Pharmacy{
		{ID: 1, Insurances: domain.InsuranceList{"CNAMGS", "Ascoma"}},
		{ID: 2, Insurances: domain.InsuranceList{"Mutuelle Ogooué"}},
		{ID: 3, SpecialInsurance: ptr("Assurance fonctionnaires")},
		{ID: 4},
	}

	pick := func(list []domain.Pharmacy) []int64 {
		var out []int64
		for _, p := range list {
			out = append(out, p.ID)
		}
		return out
	}

	assert.Len(t, FilterInsurance(in, "all"), 4)
	assert.Len(t, FilterInsurance(in, ""), 4)
	assert.Equal(t, []int64{1}, pick(FilterInsurance(in, "cnamgs")))
	assert.Equal(t, []int64{2}, pick(FilterInsurance(in, "MUTUELLE")))
	assert.Equal(t, []int64{3}, pick(FilterInsurance(in, "special")))
	assert.Empty(t, FilterInsurance(in, "tiers-payant"))
}
