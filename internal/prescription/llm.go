package prescription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"go.uber.org/zap"

	"pharmfinder/m/domain"
)

const extractPrompt = `You read medical prescriptions written in French.
Return only a JSON array of the medication names found in the text, without dosage or posology.
Example: ["Paracétamol", "Amoxicilline"]. Return [] when there is none.`

// Catalog lists the medications extraction results are matched against.
type Catalog interface {
	Catalog(ctx context.Context) ([]domain.Medication, error)
}

// LLMExtractor asks an OpenAI-compatible chat model for the medication names
// of a prescription and keeps those present in the catalog.
type LLMExtractor struct {
	client  openai.Client
	model   string
	catalog Catalog
	logger  *zap.Logger
}

func NewLLMExtractor(baseURL, apiKey, model string, catalog Catalog, logger *zap.Logger, opts ...option.RequestOption) *LLMExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		base = append(base, option.WithBaseURL(baseURL))
	}
	return &LLMExtractor{
		client:  openai.NewClient(append(base, opts...)...),
		model:   model,
		catalog: catalog,
		logger:  logger,
	}
}

func (e *LLMExtractor) Extract(ctx context.Context, text string) (domain.ScanResult, error) {
	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(e.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(extractPrompt),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(text),
					},
				},
			},
		},
		MaxTokens:   openai.Int(500),
		Temperature: openai.Float(0),
	})
	if err != nil {
		e.logger.Warn("llm extraction failed", zap.Error(err))
		return domain.ScanResult{}, fmt.Errorf("llm extraction: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.ScanResult{}, errors.New("llm extraction: empty response")
	}

	names, err := parseNames(resp.Choices[0].Message.Content)
	if err != nil {
		e.logger.Warn("unparsable llm answer", zap.String("content", resp.Choices[0].Message.Content), zap.Error(err))
		return domain.ScanResult{}, fmt.Errorf("llm extraction: %w", err)
	}
	meds, err := e.catalog.Catalog(ctx)
	if err != nil {
		return domain.ScanResult{}, err
	}

	detected := MatchCatalog(names, meds)
	res := domain.ScanResult{
		Success:      true,
		TextDetected: text,
		Medications:  detected,
		Message:      fmt.Sprintf("%d médicament(s) trouvé(s)", len(detected)),
	}
	if len(detected) == 0 {
		res.Message = "Aucun médicament du catalogue n'a été reconnu"
	}
	return res, nil
}

// parseNames reads a JSON string array, tolerating a fenced code block.
func parseNames(content string) ([]string, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)
	if i := strings.Index(content, "["); i > 0 {
		content = content[i:]
	}
	var names []string
	if err := json.Unmarshal([]byte(content), &names); err != nil {
		return nil, err
	}
	return names, nil
}

// MatchCatalog maps proposed names to catalog entries. An exact
// case-insensitive match has confidence 1, a substring match either way
// 0.7. Each catalog entry is reported once.
func MatchCatalog(names []string, meds []domain.Medication) []domain.DetectedMedication {
	out := []domain.DetectedMedication{}
	seen := map[int64]bool{}
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		var best *domain.Medication
		confidence := 0.0
		for i := range meds {
			catalogName := strings.ToLower(meds[i].Name)
			if catalogName == "" {
				continue
			}
			switch {
			case catalogName == name:
				best, confidence = &meds[i], 1
			case confidence < 0.7 && (strings.Contains(catalogName, name) || strings.Contains(name, catalogName)):
				best, confidence = &meds[i], 0.7
			}
			if confidence == 1 {
				break
			}
		}
		if best == nil || seen[best.ID] {
			continue
		}
		seen[best.ID] = true
		dosage := ""
		if best.Dosage != nil {
			dosage = *best.Dosage
		}
		out = append(out, domain.DetectedMedication{
			ID:          best.ID,
			Name:        best.Name,
			Dosage:      dosage,
			Category:    best.CategoryName(),
			Confidence:  confidence,
			MatchedText: strings.TrimSpace(raw),
		})
	}
	return out
}
