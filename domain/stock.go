package domain

// PharmacyMedication is a stock line: how many units of a medication a
// pharmacy holds and at which price.
type PharmacyMedication struct {
	ID            int64 `json:"id,omitempty"`
	PharmacyID    int64 `json:"pharmacy"`
	MedicationID  int64 `json:"medication"`
	Stock         int64 `json:"stock"`
	PharmacyPrice int64 `json:"pharmacy_medication_price"`
}

// MatchedMedication is the stock line shape nested in multi-search results.
type MatchedMedication struct {
	ID     int64  `json:"id"`
	Name   string `json:"nom"`
	Dosage string `json:"dosage,omitempty"`
	Price  int64  `json:"prix"`
	Stock  int64  `json:"stock,omitempty"`
}
