// Package search answers medication autocomplete, single-medication and
// multi-medication pharmacy searches.
package search

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"pharmfinder/m/domain"
	"pharmfinder/m/internal/backend"
	"pharmfinder/m/internal/geo"
	"pharmfinder/m/internal/ranking"
)

// MinQueryLength is the shortest query the autocomplete answers.
const MinQueryLength = 2

// Backend is the part of the backend client search needs.
type Backend interface {
	ListMedications(ctx context.Context) ([]domain.Medication, error)
	ListPharmacies(ctx context.Context, q backend.PharmacyQuery) ([]domain.Pharmacy, error)
	FindByMedications(ctx context.Context, ids []int64) ([]domain.Pharmacy, error)
}

type Service struct {
	backend   Backend
	locations *geo.Cache
	logger    *zap.Logger
	group     singleflight.Group
}

func NewService(b Backend, locations *geo.Cache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{backend: b, locations: locations, logger: logger}
}

// Catalog returns the medication catalog. Concurrent callers share one
// backend request.
func (s *Service) Catalog(ctx context.Context) ([]domain.Medication, error) {
	v, err, shared := s.group.Do("catalog", func() (any, error) {
		return s.backend.ListMedications(ctx)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("catalog fetch shared")
	}
	return v.([]domain.Medication), nil
}

// Autocomplete returns catalog entries whose name or category contains
// query, case-insensitively. Queries shorter than MinQueryLength return an
// empty list without touching the backend. limit <= 0 means no limit.
func (s *Service) Autocomplete(ctx context.Context, query string, limit int) ([]domain.Medication, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinQueryLength {
		return []domain.Medication{}, nil
	}
	meds, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return Match(meds, query, limit), nil
}

// Match filters meds by a case-insensitive substring of name or category.
func Match(meds []domain.Medication, query string, limit int) []domain.Medication {
	q := strings.ToLower(strings.TrimSpace(query))
	out := []domain.Medication{}
	for _, m := range meds {
		if strings.Contains(strings.ToLower(m.Name), q) || strings.Contains(strings.ToLower(m.CategoryName()), q) {
			out = append(out, m)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out
}

// SingleRequest is a search for the pharmacies holding one medication.
type SingleRequest struct {
	Device       string
	MedicationID int64
	Location     *domain.Coordinates
	Insurance    string
	SortBy       ranking.SortBy
}

type SingleResult struct {
	Location   *domain.Coordinates `json:"location"`
	Pharmacies []ranking.Ranked    `json:"pharmacies"`
}

// Pharmacies lists pharmacies holding the medication. Without an explicit
// location the device's cached position is used; without either the search
// runs unlocated.
func (s *Service) Pharmacies(ctx context.Context, req SingleRequest) (SingleResult, error) {
	if req.MedicationID <= 0 {
		return SingleResult{}, backend.Validation("Veuillez sélectionner un médicament")
	}
	loc := req.Location
	if loc == nil && s.locations != nil && req.Device != "" {
		cached, ok, err := s.locations.Load(ctx, req.Device)
		if err != nil {
			s.logger.Warn("location cache unavailable", zap.String("device", req.Device), zap.Error(err))
		} else if ok {
			loc = &cached
		}
	}

	pharmacies, err := s.backend.ListPharmacies(ctx, backend.PharmacyQuery{Location: loc, MedicationID: req.MedicationID})
	if err != nil {
		return SingleResult{}, err
	}
	pharmacies = ranking.FilterInsurance(pharmacies, req.Insurance)
	return SingleResult{
		Location:   loc,
		Pharmacies: ranking.Rank(pharmacies, ranking.Options{Mode: ranking.ModeSingle, SortBy: req.SortBy}),
	}, nil
}

// MultiRequest is a search for pharmacies holding several medications.
type MultiRequest struct {
	MedicationIDs []int64
	Insurance     string
	SortBy        ranking.SortBy
}

type MultiResult struct {
	TotalSearched int              `json:"total_searched"`
	Pharmacies    []ranking.Ranked `json:"pharmacies"`
}

// Multi finds pharmacies holding some or all of the medications and ranks
// them by completeness. Duplicate ids count once.
func (s *Service) Multi(ctx context.Context, req MultiRequest) (MultiResult, error) {
	ids := dedupe(req.MedicationIDs)
	pharmacies, err := s.backend.FindByMedications(ctx, ids)
	if err != nil {
		return MultiResult{}, err
	}
	pharmacies = ranking.FilterInsurance(pharmacies, req.Insurance)
	return MultiResult{
		TotalSearched: len(ids),
		Pharmacies: ranking.Rank(pharmacies, ranking.Options{
			Mode:          ranking.ModeMulti,
			SortBy:        req.SortBy,
			TotalSearched: len(ids),
		}),
	}, nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
