package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"pharmfinder/m/domain"
)

// ScanPrescription uploads an image as the multipart field "image" and
// returns the OCR result.
func (c *Client) ScanPrescription(ctx context.Context, filename string, image io.Reader) (domain.ScanResult, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("image", filename)
	if err != nil {
		return domain.ScanResult{}, fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return domain.ScanResult{}, fmt.Errorf("read upload: %w", err)
	}
	if err := form.Close(); err != nil {
		return domain.ScanResult{}, fmt.Errorf("close upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL("/scan-prescription/"), &buf)
	if err != nil {
		return domain.ScanResult{}, fmt.Errorf("build scan request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	var result domain.ScanResult
	err = c.send(req, &result, messages{badRequest: "Erreur lors du scan", other: "Erreur lors du scan"})
	return result, err
}

func (c *Client) ExtractMedicationsFromText(ctx context.Context, text string) (domain.ScanResult, error) {
	var result domain.ScanResult
	err := c.doJSON(ctx, http.MethodPost, "/extract-medications-from-text/", map[string]string{"text": text}, &result, messages{
		badRequest: "Erreur lors de l'extraction",
		other:      "Erreur lors de l'extraction",
	})
	return result, err
}
