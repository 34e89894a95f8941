// Package admin implements the pharmacy, catalog and stock management
// workflows of the admin panel.
package admin

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pharmfinder/m/domain"
	"pharmfinder/m/internal/backend"
	"pharmfinder/m/internal/seed"
)

// Backend is the part of the backend client the admin panel drives.
type Backend interface {
	ListPharmacies(ctx context.Context, q backend.PharmacyQuery) ([]domain.Pharmacy, error)
	CreatePharmacy(ctx context.Context, in domain.PharmacyInput) (domain.Pharmacy, error)
	UpdatePharmacy(ctx context.Context, id int64, in domain.PharmacyInput) (domain.Pharmacy, error)
	DeletePharmacy(ctx context.Context, id int64) error

	ListMedications(ctx context.Context) ([]domain.Medication, error)
	GetMedication(ctx context.Context, id int64) (domain.Medication, error)
	CreateMedication(ctx context.Context, med domain.Medication) (domain.Medication, error)
	UpdateMedication(ctx context.Context, id int64, med domain.Medication) (domain.Medication, error)
	DeleteMedication(ctx context.Context, id int64) error

	PharmacyStocks(ctx context.Context, pharmacyID int64) ([]domain.PharmacyMedication, error)
	CreateStock(ctx context.Context, line domain.PharmacyMedication) (domain.PharmacyMedication, error)
	UpdateStock(ctx context.Context, id int64, line domain.PharmacyMedication) (domain.PharmacyMedication, error)
	DeleteStock(ctx context.Context, id int64) error
}

// StockLine is a stock line joined with its catalog entry.
type StockLine struct {
	domain.PharmacyMedication
	MedicationName string `json:"medication_name"`
	LowStock       bool   `json:"low_stock"`
}

// PharmacyStock is a pharmacy with its stock lines.
type PharmacyStock struct {
	domain.Pharmacy
	Stocks []StockLine `json:"stocks"`
}

// Overview is everything the admin panel shows at once.
type Overview struct {
	Pharmacies  []PharmacyStock     `json:"pharmacies"`
	Medications []domain.Medication `json:"medications"`
	Categories  []string            `json:"categories"`
}

type Service struct {
	backend Backend
	logger  *zap.Logger
}

func NewService(b Backend, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{backend: b, logger: logger}
}

// Overview loads pharmacies and the catalog in parallel, then every
// pharmacy's stock in parallel. A pharmacy whose stock cannot be read is
// shown with no stock.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	var (
		pharmacies  []domain.Pharmacy
		medications []domain.Medication
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pharmacies, err = s.backend.ListPharmacies(gctx, backend.PharmacyQuery{})
		return err
	})
	g.Go(func() error {
		var err error
		medications, err = s.backend.ListMedications(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}

	catalog := make(map[int64]domain.Medication, len(medications))
	for _, m := range medications {
		catalog[m.ID] = m
	}

	out := make([]PharmacyStock, len(pharmacies))
	sg, sctx := errgroup.WithContext(ctx)
	for i, p := range pharmacies {
		sg.Go(func() error {
			lines, err := s.backend.PharmacyStocks(sctx, p.ID)
			if err != nil {
				s.logger.Warn("unable to load pharmacy stock", zap.Int64("pharmacy_id", p.ID), zap.Error(err))
				lines = nil
			}
			out[i] = PharmacyStock{Pharmacy: p, Stocks: joinStock(lines, catalog)}
			return nil
		})
	}
	_ = sg.Wait()

	if medications == nil {
		medications = []domain.Medication{}
	}
	return Overview{Pharmacies: out, Medications: medications, Categories: Categories(medications)}, nil
}

func joinStock(lines []domain.PharmacyMedication, catalog map[int64]domain.Medication) []StockLine {
	out := make([]StockLine, 0, len(lines))
	for _, l := range lines {
		med, ok := catalog[l.MedicationID]
		line := StockLine{PharmacyMedication: l}
		if ok {
			line.MedicationName = med.Name
			line.LowStock = med.MinStock > 0 && l.Stock < med.MinStock
		}
		out = append(out, line)
	}
	return out
}

// Categories returns the distinct non-empty categories, sorted.
func Categories(meds []domain.Medication) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, m := range meds {
		c := strings.TrimSpace(m.CategoryName())
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// CategoryAll disables the category filter.
const CategoryAll = "all"

// FilterPharmacies keeps pharmacies whose name or address contains term.
func FilterPharmacies(list []PharmacyStock, term string) []PharmacyStock {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return list
	}
	out := []PharmacyStock{}
	for _, p := range list {
		if strings.Contains(strings.ToLower(p.Name), term) || strings.Contains(strings.ToLower(p.Address), term) {
			out = append(out, p)
		}
	}
	return out
}

// FilterMedications keeps medications whose name or description contains
// term and, unless category is empty or CategoryAll, whose category equals
// it.
func FilterMedications(list []domain.Medication, term, category string) []domain.Medication {
	term = strings.ToLower(strings.TrimSpace(term))
	category = strings.TrimSpace(category)
	out := []domain.Medication{}
	for _, m := range list {
		if term != "" &&
			!strings.Contains(strings.ToLower(m.Name), term) &&
			!strings.Contains(strings.ToLower(m.DescriptionText()), term) {
			continue
		}
		if category != "" && category != CategoryAll && m.CategoryName() != category {
			continue
		}
		out = append(out, m)
	}
	return out
}

// AddStock adds qty units of a medication to a pharmacy. An existing line
// keeps its price; a new line takes the catalog price. The refreshed stock
// of the pharmacy is returned.
func (s *Service) AddStock(ctx context.Context, pharmacyID, medicationID, qty int64) ([]domain.PharmacyMedication, error) {
	if pharmacyID <= 0 || medicationID <= 0 {
		return nil, backend.Validation("Veuillez sélectionner une pharmacie et un médicament")
	}
	if qty <= 0 {
		return nil, backend.Validation("La quantité doit être supérieure à zéro")
	}

	lines, err := s.backend.PharmacyStocks(ctx, pharmacyID)
	if err != nil {
		return nil, err
	}
	var existing *domain.PharmacyMedication
	for i := range lines {
		if lines[i].MedicationID == medicationID {
			existing = &lines[i]
			break
		}
	}

	if existing != nil {
		update := *existing
		update.Stock += qty
		if _, err := s.backend.UpdateStock(ctx, existing.ID, update); err != nil {
			return nil, err
		}
	} else {
		med, err := s.backend.GetMedication(ctx, medicationID)
		if err != nil {
			return nil, err
		}
		line := domain.PharmacyMedication{
			PharmacyID:    pharmacyID,
			MedicationID:  medicationID,
			Stock:         qty,
			PharmacyPrice: med.Price,
		}
		if _, err := s.backend.CreateStock(ctx, line); err != nil {
			return nil, err
		}
	}
	s.logger.Info("stock added",
		zap.Int64("pharmacy_id", pharmacyID),
		zap.Int64("medication_id", medicationID),
		zap.Int64("quantity", qty),
		zap.Bool("new_line", existing == nil))
	return s.backend.PharmacyStocks(ctx, pharmacyID)
}

// SetStock overwrites the quantity and price of a stock line.
func (s *Service) SetStock(ctx context.Context, line domain.PharmacyMedication) (domain.PharmacyMedication, error) {
	if line.ID <= 0 {
		return domain.PharmacyMedication{}, backend.Validation("Ligne de stock inconnue")
	}
	if line.Stock < 0 || line.PharmacyPrice < 0 {
		return domain.PharmacyMedication{}, backend.Validation("Le stock et le prix doivent être positifs")
	}
	return s.backend.UpdateStock(ctx, line.ID, line)
}

func (s *Service) RemoveStock(ctx context.Context, id int64) error {
	return s.backend.DeleteStock(ctx, id)
}

func (s *Service) Stocks(ctx context.Context, pharmacyID int64) ([]domain.PharmacyMedication, error) {
	return s.backend.PharmacyStocks(ctx, pharmacyID)
}

func (s *Service) CreatePharmacy(ctx context.Context, in domain.PharmacyInput) (domain.Pharmacy, error) {
	if err := validatePharmacy(in); err != nil {
		return domain.Pharmacy{}, err
	}
	return s.backend.CreatePharmacy(ctx, normalizePharmacy(in))
}

func (s *Service) UpdatePharmacy(ctx context.Context, id int64, in domain.PharmacyInput) (domain.Pharmacy, error) {
	if err := validatePharmacy(in); err != nil {
		return domain.Pharmacy{}, err
	}
	return s.backend.UpdatePharmacy(ctx, id, normalizePharmacy(in))
}

func (s *Service) DeletePharmacy(ctx context.Context, id int64) error {
	return s.backend.DeletePharmacy(ctx, id)
}

// normalizePharmacy flattens insurance entries typed as "CNAMGS, Ascoma" in
// the admin form into one name per entry.
func normalizePharmacy(in domain.PharmacyInput) domain.PharmacyInput {
	in.Insurances = domain.SplitInsurances(strings.Join(in.Insurances, ","))
	return in
}

func validatePharmacy(in domain.PharmacyInput) error {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Address) == "" {
		return backend.Validation("Le nom et l'adresse de la pharmacie sont obligatoires")
	}
	return nil
}

func (s *Service) CreateMedication(ctx context.Context, med domain.Medication) (domain.Medication, error) {
	if err := validateMedication(med); err != nil {
		return domain.Medication{}, err
	}
	return s.backend.CreateMedication(ctx, med)
}

func (s *Service) UpdateMedication(ctx context.Context, id int64, med domain.Medication) (domain.Medication, error) {
	if err := validateMedication(med); err != nil {
		return domain.Medication{}, err
	}
	return s.backend.UpdateMedication(ctx, id, med)
}

func (s *Service) DeleteMedication(ctx context.Context, id int64) error {
	return s.backend.DeleteMedication(ctx, id)
}

func validateMedication(med domain.Medication) error {
	if strings.TrimSpace(med.Name) == "" {
		return backend.Validation("Le nom du médicament est obligatoire")
	}
	if med.Price < 0 {
		return backend.Validation("Le prix doit être positif")
	}
	return nil
}

// ImportMedications bulk-creates catalog entries from a CSV file.
func (s *Service) ImportMedications(ctx context.Context, r io.Reader) (seed.Report, error) {
	report, err := seed.LoadMedications(ctx, r, s.backend, s.logger)
	if err != nil {
		return seed.Report{}, fmt.Errorf("import medications: %w", err)
	}
	return report, nil
}
