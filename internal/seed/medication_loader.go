package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"pharmfinder/m/domain"
)

// Catalog is where imported medications are created.
type Catalog interface {
	ListMedications(ctx context.Context) ([]domain.Medication, error)
	CreateMedication(ctx context.Context, med domain.Medication) (domain.Medication, error)
}

// Report summarises a catalog import.
type Report struct {
	Created    int      `json:"created"`
	Duplicates int      `json:"duplicates"`
	Skipped    int      `json:"skipped"`
	Errors     []string `json:"errors"`
}

var columnAliases = map[string]string{
	"nom":         "nom",
	"name":        "nom",
	"description": "description",
	"dosage":      "dosage",
	"categorie":   "categorie",
	"category":    "categorie",
	"prix":        "prix",
	"price":       "prix",
	"min_stock":   "min_stock",
}

var ErrNoNameColumn = errors.New("csv header has no nom/name column")

// ParseMedications reads a catalog CSV. The first row is a header naming
// the columns; rows without a name are skipped and rows with an invalid
// number are reported.
func ParseMedications(r io.Reader) ([]domain.Medication, []string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, ErrNoNameColumn
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	cols := map[string]int{}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if name, ok := columnAliases[h]; ok {
			cols[name] = i
		}
	}
	if _, ok := cols["nom"]; !ok {
		return nil, nil, ErrNoNameColumn
	}

	var meds []domain.Medication
	var problems []string
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			problems = append(problems, fmt.Sprintf("ligne %d: %v", line, err))
			continue
		}
		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		med := domain.Medication{Name: field("nom")}
		if med.Name == "" {
			continue
		}
		if med.Price, err = parseAmount(field("prix")); err != nil {
			problems = append(problems, fmt.Sprintf("ligne %d: prix invalide %q", line, field("prix")))
			continue
		}
		if med.MinStock, err = parseAmount(field("min_stock")); err != nil {
			problems = append(problems, fmt.Sprintf("ligne %d: min_stock invalide %q", line, field("min_stock")))
			continue
		}
		med.Description = optional(field("description"))
		med.Dosage = optional(field("dosage"))
		med.Category = optional(field("categorie"))
		meds = append(meds, med)
	}
	return meds, problems, nil
}

// LoadMedications imports a catalog CSV through c, ignoring names already in
// the catalog (case-insensitive).
func LoadMedications(ctx context.Context, r io.Reader, c Catalog, logger *zap.Logger) (Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	meds, problems, err := ParseMedications(r)
	if err != nil {
		return Report{}, err
	}
	existing, err := c.ListMedications(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list catalog: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, m := range existing {
		known[strings.ToLower(m.Name)] = true
	}

	report := Report{Skipped: len(problems), Errors: problems}
	for _, med := range meds {
		key := strings.ToLower(med.Name)
		if known[key] {
			report.Duplicates++
			continue
		}
		if _, err := c.CreateMedication(ctx, med); err != nil {
			logger.Warn("unable to create medication", zap.String("name", med.Name), zap.Error(err))
			report.Skipped++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", med.Name, err))
			continue
		}
		known[key] = true
		report.Created++
	}
	if report.Errors == nil {
		report.Errors = []string{}
	}
	logger.Info("imported medication catalog",
		zap.Int("created", report.Created),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("skipped", report.Skipped))
	return report, nil
}

func parseAmount(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(strings.ReplaceAll(raw, " ", ""), 10, 64)
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
