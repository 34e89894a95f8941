package domain

// CartItem is one line of a device cart.
type CartItem struct {
	MedicationID    int64  `json:"medicationId"`
	MedicationName  string `json:"medicationName"`
	Price           string `json:"price"`
	Quantity        int64  `json:"quantity"`
	PharmacyID      int64  `json:"pharmacyId"`
	PharmacyName    string `json:"pharmacyName"`
	PharmacyAddress string `json:"pharmacyAddress"`
}
