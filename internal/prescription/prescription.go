// Package prescription validates prescription photos for OCR and turns
// validated prescription text into catalog medications.
package prescription

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"pharmfinder/m/domain"
	"pharmfinder/m/internal/backend"
)

// MaxImageSize is the largest accepted prescription photo.
const MaxImageSize = 10 << 20

const (
	MsgNotAnImage = "Veuillez sélectionner une image"
	MsgTooLarge   = "L'image ne doit pas dépasser 10 Mo"
	MsgEmptyText  = "Veuillez saisir le texte de l'ordonnance"
)

// Scanner runs OCR on a prescription photo.
type Scanner interface {
	ScanPrescription(ctx context.Context, filename string, image io.Reader) (domain.ScanResult, error)
}

// Extractor finds catalog medications in validated prescription text.
type Extractor interface {
	Extract(ctx context.Context, text string) (domain.ScanResult, error)
}

type Service struct {
	scanner   Scanner
	extractor Extractor
	logger    *zap.Logger
}

func NewService(scanner Scanner, extractor Extractor, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{scanner: scanner, extractor: extractor, logger: logger}
}

// Scan checks that image is a picture of at most MaxImageSize bytes and
// forwards it for OCR. The detected text is meant to be reviewed by the
// user before Extract.
func (s *Service) Scan(ctx context.Context, filename string, image io.Reader) (domain.ScanResult, error) {
	data, err := io.ReadAll(io.LimitReader(image, MaxImageSize+1))
	if err != nil {
		return domain.ScanResult{}, err
	}
	if len(data) > MaxImageSize {
		return domain.ScanResult{}, backend.Validation(MsgTooLarge)
	}
	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		s.logger.Info("rejected prescription upload", zap.String("filename", filename), zap.String("mime", mtype.String()))
		return domain.ScanResult{}, backend.Validation(MsgNotAnImage)
	}
	if filename == "" {
		filename = "prescription" + mtype.Extension()
	}
	return s.scanner.ScanPrescription(ctx, filename, bytes.NewReader(data))
}

// Extract maps validated text to catalog medications.
func (s *Service) Extract(ctx context.Context, text string) (domain.ScanResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ScanResult{}, backend.Validation(MsgEmptyText)
	}
	res, err := s.extractor.Extract(ctx, text)
	if err != nil {
		return domain.ScanResult{}, err
	}
	if res.Medications == nil {
		res.Medications = []domain.DetectedMedication{}
	}
	if res.MedicationIDs == nil {
		res.MedicationIDs = make([]int64, 0, len(res.Medications))
		for _, m := range res.Medications {
			res.MedicationIDs = append(res.MedicationIDs, m.ID)
		}
	}
	return res, nil
}

// TextExtractor is the backend call behind BackendExtractor.
type TextExtractor interface {
	ExtractMedicationsFromText(ctx context.Context, text string) (domain.ScanResult, error)
}

// BackendExtractor delegates extraction to the backend.
type BackendExtractor struct {
	Backend TextExtractor
}

func (e BackendExtractor) Extract(ctx context.Context, text string) (domain.ScanResult, error) {
	return e.Backend.ExtractMedicationsFromText(ctx, text)
}
