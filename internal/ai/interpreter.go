package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/dreamlog/internal/model"
)

const interpretPrompt = `You are a Jungian dream analyst.
Return ONLY valid JSON. Do not write an introduction.

Schema:
{
  "summary": "1 sentence summary",
  "motifs": ["3-10 key symbols found in the dream"],
  "emotions": ["0-6 emotions felt"],
  "themes": ["2-6 psychological themes"],
  "interpretation": "3-5 sentences, specific to the dream, focusing on archetypes",
  "advice": "1 sentence reflection question for the dreamer"
}

Dream:
%s`

type Interpreter struct {
	gen     IGenerator
	timeout time.Duration
}

func NewInterpreter(gen IGenerator, timeout time.Duration) *Interpreter {
	return &Interpreter{gen: gen, timeout: timeout}
}

// Interpret asks the model for a structured reading of text. Any failure is
// returned as an error; callers substitute FallbackInterpretation.
func (i *Interpreter) Interpret(ctx context.Context, text string) (*model.Interpretation, error) {
	if i == nil || i.gen == nil {
		return nil, ErrUnavailable
	}
	ctx, cancel := withTimeout(ctx, i.timeout)
	defer cancel()
	out, err := i.gen.Generate(ctx, fmt.Sprintf(interpretPrompt, text))
	if err != nil {
		return nil, err
	}
	return parseInterpretation(out)
}

func parseInterpretation(output string) (*model.Interpretation, error) {
	clean := strings.TrimSpace(output)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)
	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("parse interpretation: no json object in response")
	}
	clean = clean[start : end+1]

	res := &model.Interpretation{}
	if err := json.Unmarshal([]byte(clean), res); err != nil {
		return nil, fmt.Errorf("parse interpretation: %w", err)
	}
	res.Summary = strings.TrimSpace(res.Summary)
	res.Interpretation = strings.TrimSpace(res.Interpretation)
	res.Advice = strings.TrimSpace(res.Advice)
	if res.Summary == "" && res.Interpretation == "" {
		return nil, fmt.Errorf("parse interpretation: summary and interpretation are empty")
	}
	if res.Summary == "" {
		res.Summary = res.Interpretation
	}
	if res.Interpretation == "" {
		res.Interpretation = res.Summary
	}
	res.Motifs = normalizeList(res.Motifs, model.MaxMotifs)
	res.Emotions = normalizeList(res.Emotions, model.MaxEmotions)
	res.Themes = normalizeList(res.Themes, model.MaxThemes)
	return res, nil
}

func normalizeList(items []string, max int) []string {
	uniq := make([]string, 0, len(items))
	seen := make(map[string]bool)
	for _, item := range items {
		normalized := strings.TrimSpace(item)
		if normalized == "" {
			continue
		}
		key := strings.ToLower(normalized)
		if seen[key] {
			continue
		}
		seen[key] = true
		uniq = append(uniq, normalized)
		if len(uniq) >= max {
			break
		}
	}
	return uniq
}

// FallbackInterpretation is stored when the model could not be reached or
// answered with something unusable.
func FallbackInterpretation() *model.Interpretation {
	return &model.Interpretation{
		Summary:        "Analysis unavailable.",
		Motifs:         []string{"System Offline"},
		Emotions:       []string{},
		Themes:         []string{},
		Interpretation: "The interpretation service could not be reached. Your dream has been recorded and can be revisited later.",
		Advice:         "What stood out to you most when you woke up?",
	}
}

func IsFallbackInterpretation(i *model.Interpretation) bool {
	return i != nil && i.Summary == FallbackInterpretation().Summary
}
