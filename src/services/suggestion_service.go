package services

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"github.com/username/smartledger/backend/src/logger"
)

// SuggestionService produces a short natural-language spending review from a
// month of records via the Gemini API. The client reads its API key from the
// environment; when initialization fails the service stays up and every
// Suggest call reports the error instead.
type SuggestionService struct {
	client *genai.Client
	model  string
}

func NewSuggestionService(ctx context.Context, model string) *SuggestionService {
	client, err := genai.NewClient(ctx, nil)
	if err != nil {
		logger.L.Warn("Gemini client unavailable, AI suggestions disabled", "error", err)
		client = nil
	}
	return &SuggestionService{client: client, model: model}
}

// Suggest asks the model for budgeting advice over the given records.
func (s *SuggestionService) Suggest(ctx context.Context, username string, records []map[string]any) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("AI suggestion service is not configured")
	}
	if len(records) == 0 {
		return "", fmt.Errorf("no records to analyze")
	}

	encoded, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("failed to encode records: %w", err)
	}

	prompt := fmt.Sprintf(`You are a personal finance assistant. The user %s has the
following ledger records for this month, as JSON (amounts are in TWD,
transactionType 支出 means expense and 收入 means income):

%s

In at most five sentences, summarize their spending pattern and give one
concrete, actionable saving suggestion. Answer in the same language as the
record categories.`, username, string(encoded))

	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty response")
	}
	return text, nil
}
