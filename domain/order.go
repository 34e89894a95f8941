package domain

// OrderLine is one item of an order sent to the backend.
type OrderLine struct {
	MedicationID int64  `json:"medication"`
	Quantity     int64  `json:"quantity"`
	PriceAtOrder string `json:"price_at_order"`
}

// OrderRequest is the payload of POST /orders/.
type OrderRequest struct {
	PharmacyID int64       `json:"pharmacy"`
	Items      []OrderLine `json:"items"`
}

// OrderRecord is a placed order kept in the local history of a device.
type OrderRecord struct {
	ID           int64  `db:"id" json:"id"`
	DeviceID     string `db:"device_id" json:"-"`
	PharmacyID   int64  `db:"pharmacy_id" json:"pharmacy_id"`
	PharmacyName string `db:"pharmacy_name" json:"pharmacy_name"`
	BackendID    *int64 `db:"backend_id" json:"backend_id,omitempty"`
	Total        string `db:"total" json:"total"`
	ItemCount    int64  `db:"item_count" json:"item_count"`
	CreatedAt    string `db:"created_at" json:"created_at"`
}
