package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Pharmacy mirrors a pharmacy record of the backend. The pointer fields at
// the bottom are computed by the backend for a given search.
type Pharmacy struct {
	ID               int64         `json:"id"`
	Name             string        `json:"nom"`
	Address          string        `json:"adresse"`
	Phone            *string       `json:"telephone"`
	Latitude         string        `json:"latitude"`
	Longitude        string        `json:"longitude"`
	Rating           string        `json:"note"`
	OpeningTime      *string       `json:"opening_time"`
	ClosingTime      *string       `json:"closing_time"`
	Insurances       InsuranceList `json:"assurances_acceptees"`
	SpecialInsurance *string       `json:"assurance_speciale"`

	DistanceKm        *float64            `json:"distance_km,omitempty"`
	IsOpen            *bool               `json:"is_open,omitempty"`
	MedicationPrice   *int64              `json:"medication_price,omitempty"`
	MedicationStock   *int64              `json:"medication_stock,omitempty"`
	MatchCount        *int                `json:"match_count,omitempty"`
	TotalMedsInSearch *int                `json:"total_meds_in_search,omitempty"`
	Medications       []MatchedMedication `json:"medications,omitempty"`
}

// RatingValue parses the rating string, 0 when it is not a number.
func (p Pharmacy) RatingValue() float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(p.Rating), 64)
	if err != nil {
		return 0
	}
	return v
}

// InsuranceList accepts a JSON array, a string holding a JSON array, or null.
// Anything else decodes to an empty list.
type InsuranceList []string

func (l *InsuranceList) UnmarshalJSON(data []byte) error {
	*l = nil
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		*l = list
	}
	return nil
}

// PharmacyInput is the body sent when creating or updating a pharmacy.
type PharmacyInput struct {
	Name             string   `json:"nom"`
	Address          string   `json:"adresse"`
	Phone            string   `json:"telephone,omitempty"`
	OpeningTime      string   `json:"opening_time,omitempty"`
	ClosingTime      string   `json:"closing_time,omitempty"`
	Latitude         string   `json:"latitude,omitempty"`
	Longitude        string   `json:"longitude,omitempty"`
	Rating           string   `json:"note,omitempty"`
	Insurances       []string `json:"assurances_acceptees"`
	SpecialInsurance *string  `json:"assurance_speciale,omitempty"`
}

// SplitInsurances turns "CNAMGS, Ascoma,," into its non-empty trimmed parts.
func SplitInsurances(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
