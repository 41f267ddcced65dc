// Package moderation classifies text against the moderation endpoint and
// explains which categories fired.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/PauloHFS/llm-bootcamp/internal/llm"
	"github.com/PauloHFS/llm-bootcamp/internal/logging"
	"github.com/PauloHFS/llm-bootcamp/internal/metrics"
)

// Moderator is the moderation surface of llm.Client.
type Moderator interface {
	Moderate(ctx context.Context, req llm.ModerationRequest) (*llm.ModerationResponse, error)
}

const (
	ThresholdLow    = 0.1
	ThresholdMedium = 0.5
	ThresholdHigh   = 0.9
)

var ErrNoInput = errors.New("no text to moderate")

// Descriptions explains each category, keyed by the API name.
var Descriptions = map[string]string{
	"hate":             "Content expressing hate or violence against protected groups",
	"hate/threatening": "Content expressing hate with threat of violence",
	"self-harm":        "Content promoting self-harm or suicide",
	"sexual":           "Content of a sexual nature",
	"sexual/minors":    "Content involving minors in sexual contexts",
	"violence":         "Content promoting violence",
	"violence/graphic": "Graphic content promoting violence",
}

// Describe falls back to the raw category name for categories newer models add.
func Describe(category string) string {
	if d, ok := Descriptions[normalize(category)]; ok {
		return d
	}
	return category
}

// normalize accepts the underscore spelling used in older SDKs.
func normalize(category string) string {
	switch category {
	case "hate_threatening":
		return "hate/threatening"
	case "self_harm":
		return "self-harm"
	case "sexual_minors":
		return "sexual/minors"
	case "violence_graphic":
		return "violence/graphic"
	}
	return category
}

type CategoryScore struct {
	Category string  `json:"category"`
	Score    float64 `json:"score"`
}

type Result struct {
	Text     string             `json:"text"`
	Flagged  bool               `json:"flagged"`
	Flags    []string           `json:"flags"`
	Scores   map[string]float64 `json:"scores"`
	Exceeded []CategoryScore    `json:"exceeded,omitempty"`
}

// Top returns the n highest scoring categories, highest first.
func (r Result) Top(n int) []CategoryScore {
	out := make([]CategoryScore, 0, len(r.Scores))
	for c, s := range r.Scores {
		out = append(out, CategoryScore{Category: c, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Category < out[j].Category
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// Exceeding lists the categories whose score is at or above their threshold.
// Categories missing from thresholds use def.
func Exceeding(scores map[string]float64, thresholds map[string]float64, def float64) []CategoryScore {
	var out []CategoryScore
	for c, s := range scores {
		limit, ok := thresholds[c]
		if !ok {
			limit = def
		}
		if s >= limit {
			out = append(out, CategoryScore{Category: c, Score: s})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// ParseThresholds reads "category=score" pairs separated by commas.
func ParseThresholds(pairs string) (map[string]float64, error) {
	out := map[string]float64{}
	for _, part := range strings.Split(pairs, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid threshold %q, want category=score", part)
		}
		score, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || score < 0 || score > 1 {
			return nil, fmt.Errorf("invalid threshold %q: score must be between 0 and 1", part)
		}
		out[normalize(strings.TrimSpace(name))] = score
	}
	return out, nil
}

type Service struct {
	Client     Moderator
	Model      string
	Thresholds map[string]float64
	Default    float64
}

func NewService(client Moderator, model string) *Service {
	return &Service{Client: client, Model: model, Default: ThresholdMedium}
}

func (s *Service) Check(ctx context.Context, text string) (Result, error) {
	results, err := s.CheckBatch(ctx, []string{text})
	if err != nil {
		return Result{}, err
	}
	return results[0], nil
}

// CheckBatch moderates all texts in one request. Results follow input order.
func (s *Service) CheckBatch(ctx context.Context, texts []string) ([]Result, error) {
	if len(texts) == 0 {
		return nil, ErrNoInput
	}
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, ErrNoInput
		}
	}

	resp, err := s.Client.Moderate(ctx, llm.ModerationRequest{Model: s.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("moderation failed: %w", err)
	}
	if len(resp.Results) != len(texts) {
		return nil, fmt.Errorf("moderation returned %d results for %d inputs", len(resp.Results), len(texts))
	}

	out := make([]Result, len(texts))
	for i, r := range resp.Results {
		out[i] = s.result(ctx, texts[i], r)
	}
	return out, nil
}

func (s *Service) result(ctx context.Context, text string, r llm.ModerationResult) Result {
	res := Result{
		Text:    text,
		Flagged: r.Flagged,
		Flags:   []string{},
		Scores:  r.CategoryScores,
	}
	for c, hit := range r.Categories {
		if hit {
			res.Flags = append(res.Flags, c)
			metrics.ModerationFlagsTotal.WithLabelValues(c).Inc()
		}
	}
	sort.Strings(res.Flags)

	if s.Thresholds != nil {
		res.Exceeded = Exceeding(r.CategoryScores, s.Thresholds, s.Default)
	}
	if res.Flagged {
		logging.Get().InfoContext(ctx, "content flagged", slog.Any("categories", res.Flags))
	}
	return res
}

const Guidelines = `OpenAI's content policy prohibits:
  - Hate speech and harassment
  - Violence and graphic content
  - Self-harm content
  - Sexual content involving minors
  - Misinformation and disinformation
  - Privacy violations

Best Practices:
  - Always moderate user-generated content
  - Use appropriate thresholds for your use case
  - Consider context when interpreting results
  - Implement additional safety measures
  - Monitor and update moderation rules regularly`

const (
	SafeExample        = "Hello! How are you today? I hope you're having a wonderful day."
	EducationalExample = "This is a discussion about violence in historical contexts for educational purposes."
	CategoryExample    = "This is a test message for content moderation."
)

var BatchExamples = []string{
	"Have a great day!",
	"This is a test of the moderation system.",
	"Let's discuss programming concepts.",
}
