package categorize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// contentGenerator is the part of the genai client used by Gemini.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini is a Classifier backed by the Gemini API.
type Gemini struct {
	models contentGenerator
	model  string
}

// NewGemini creates a Gemini classifier. An empty apiKey lets the client read GEMINI_API_KEY
// or GOOGLE_API_KEY from the environment.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{models: client.Models, model: model}, nil
}

// Classify sends every description in one request and expects a JSON array of names back.
func (g *Gemini) Classify(ctx context.Context, descriptions []string, existing []string) ([]string, error) {
	prompt, err := buildPrompt(descriptions, existing)
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
	}
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	raw := resp.Text()
	if raw == "" {
		return nil, fmt.Errorf("empty response from model")
	}

	var names []string
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &names); err != nil {
		return nil, fmt.Errorf("failed to unmarshal classifier response: %w", err)
	}
	return names, nil
}

func buildPrompt(descriptions []string, existing []string) (string, error) {
	descJSON, err := json.Marshal(descriptions)
	if err != nil {
		return "", fmt.Errorf("failed to encode descriptions: %w", err)
	}
	if existing == nil {
		existing = []string{}
	}
	existingJSON, err := json.Marshal(existing)
	if err != nil {
		return "", fmt.Errorf("failed to encode categories: %w", err)
	}

	var b strings.Builder
	b.WriteString("You categorize personal bank transactions.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- For each transaction description, choose a short category name.\n")
	b.WriteString("- Prefer one of the existing categories when it fits.\n")
	b.WriteString("- Otherwise use a short title-case name such as Transport, Food, Subscriptions, Transfers or Other.\n")
	b.WriteString("- Output STRICT JSON only: an array of strings with exactly one name per description, in the same order.\n\n")
	b.WriteString("Existing categories: ")
	b.Write(existingJSON)
	b.WriteString("\nDescriptions: ")
	b.Write(descJSON)
	b.WriteString("\n")
	return b.String(), nil
}

// cleanModelJSON strips markdown fences and any text around the outermost JSON array.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = s[start : end+1]
		}
	}
	return strings.TrimSpace(s)
}
