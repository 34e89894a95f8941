package domain

// Medication mirrors a catalog entry of the pharmacy backend. Price is in
// minor currency units.
type Medication struct {
	ID          int64   `json:"id"`
	Name        string  `json:"nom"`
	Description *string `json:"description"`
	Dosage      *string `json:"dosage"`
	Category    *string `json:"categorie"`
	Price       int64   `json:"prix"`
	MinStock    int64   `json:"min_stock"`
}

// CategoryName returns the category or an empty string.
func (m Medication) CategoryName() string {
	if m.Category == nil {
		return ""
	}
	return *m.Category
}

// DescriptionText returns the description or an empty string.
func (m Medication) DescriptionText() string {
	if m.Description == nil {
		return ""
	}
	return *m.Description
}
