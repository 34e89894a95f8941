package domain

// DetectedMedication is a catalog medication recognised in a prescription.
type DetectedMedication struct {
	ID          int64   `json:"id"`
	Name        string  `json:"nom"`
	Dosage      string  `json:"dosage"`
	Category    string  `json:"categorie"`
	Confidence  float64 `json:"confidence"`
	MatchedText string  `json:"matched_text"`
}

// ScanResult is returned by both the scan and the text extraction endpoints.
type ScanResult struct {
	Success       bool                 `json:"success"`
	TextDetected  string               `json:"text_detected"`
	Medications   []DetectedMedication `json:"medications"`
	MedicationIDs []int64              `json:"medication_ids"`
	Message       string               `json:"message"`
	Error         string               `json:"error,omitempty"`
}
