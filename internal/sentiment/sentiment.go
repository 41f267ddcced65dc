// Package sentiment classifies text through strict structured output.
package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/PauloHFS/llm-bootcamp/internal/llm"
	"github.com/PauloHFS/llm-bootcamp/internal/logging"
	"github.com/PauloHFS/llm-bootcamp/internal/validator"
)

type Sentiment string

const (
	Positive Sentiment = "Positive"
	Negative Sentiment = "Negative"
	Neutral  Sentiment = "Neutral"
)

const (
	DefaultTemperature = 0.1
	DefaultMaxTokens   = 300
	DefaultConcurrency = 4
)

type Analysis struct {
	Sentiment   Sentiment `json:"sentiment" validate:"oneof=Positive Negative Neutral" jsonschema:"enum=Positive,enum=Negative,enum=Neutral" jsonschema_description:"The classified sentiment"`
	Confidence  float64   `json:"confidence" validate:"gte=0,lte=1" jsonschema:"minimum=0,maximum=1" jsonschema_description:"Confidence score between 0 and 1"`
	Explanation string    `json:"explanation" jsonschema_description:"Brief explanation of the sentiment classification"`
	Keywords    []string  `json:"keywords" jsonschema_description:"Key words/phrases that influenced the classification"`
	Intensity   string    `json:"intensity" validate:"oneof='Very Low' Low Medium High 'Very High'" jsonschema:"enum=Very Low,enum=Low,enum=Medium,enum=High,enum=Very High" jsonschema_description:"Intensity level: Very Low, Low, Medium, High, Very High"`
}

// Label renders the bracketed tag shown next to a result.
func (a Analysis) Label() string {
	switch a.Sentiment {
	case Positive, Negative, Neutral:
		return "[" + string(a.Sentiment) + "]"
	default:
		return "[Unknown]"
	}
}

// Fallback is the neutral result returned when analysis fails.
func Fallback(err error) Analysis {
	return Analysis{
		Sentiment:   Neutral,
		Confidence:  0,
		Explanation: fmt.Sprintf("Error during analysis: %v", err),
		Keywords:    []string{},
		Intensity:   "Very Low",
	}
}

const systemPrompt = `You are a sentiment analysis expert. Analyze the sentiment of text and provide detailed classification.

Guidelines for classification:
- Positive: Expresses happiness, satisfaction, approval, or positive emotions
- Negative: Expresses anger, frustration, disappointment, or negative emotions
- Neutral: Factual, objective, or balanced statements without strong emotional content

Consider context, tone, and emotional indicators when classifying sentiment.
Provide confidence scores between 0.0 and 1.0, and identify key words that influenced your decision.`

var responseFormat = &llm.ResponseFormat{
	Type: "json_schema",
	JSONSchema: &llm.JSONSchema{
		Name:   "SentimentAnalysis",
		Schema: llm.MustSchemaFor[Analysis](),
		Strict: true,
	},
}

type Analyzer struct {
	Client      llm.LLMClient
	Model       string
	Temperature float64
	MaxTokens   int
	Concurrency int
}

func NewAnalyzer(client llm.LLMClient, model string) *Analyzer {
	return &Analyzer{
		Client:      client,
		Model:       model,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		Concurrency: DefaultConcurrency,
	}
}

// Analyze returns the model's classification or an error. Callers that want
// the neutral fallback use AnalyzeOrFallback.
func (a *Analyzer) Analyze(ctx context.Context, text string) (Analysis, error) {
	resp, err := a.Client.Generate(ctx, llm.CompletionRequest{
		Model: a.Model,
		Messages: []llm.Message{
			llm.SystemMessage(systemPrompt),
			llm.UserMessage("Analyze the sentiment of this text: " + text),
		},
		ResponseFormat: responseFormat,
		MaxTokens:      a.MaxTokens,
		Temperature:    a.Temperature,
	})
	if err != nil {
		return Analysis{}, err
	}

	content := resp.Text()
	if content == "" {
		return Analysis{}, llm.ErrEmptyResponse
	}

	var out Analysis
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return Analysis{}, fmt.Errorf("failed to parse analysis: %w", err)
	}
	if res := validator.Check(out); !res.Valid {
		return Analysis{}, fmt.Errorf("invalid analysis: %s", res.Error())
	}
	if out.Keywords == nil {
		out.Keywords = []string{}
	}
	return out, nil
}

func (a *Analyzer) AnalyzeOrFallback(ctx context.Context, text string) Analysis {
	out, err := a.Analyze(ctx, text)
	if err != nil {
		logging.Get().WarnContext(ctx, "sentiment analysis failed", slog.String("error", err.Error()))
		return Fallback(err)
	}
	return out
}

// AnalyzeBatch classifies texts concurrently and returns results in input
// order. Individual failures become fallbacks; only context cancellation
// aborts the batch.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, texts []string) ([]Analysis, error) {
	results := make([]Analysis, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	limit := a.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	g.SetLimit(limit)

	for i, text := range texts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = a.AnalyzeOrFallback(gctx, text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, ctx.Err()
}

var DemoTexts = []string{
	"I love how user-friendly and powerful OpenAI's tools are!",
	"Your software does not work at all and I'm very frustrated.",
	"The weather today is sunny with a temperature of 25 degrees Celsius.",
	"This product exceeded my expectations and I'm thrilled with the results!",
	"I'm extremely disappointed with the poor customer service I received.",
	"The meeting will be held tomorrow at 2 PM in the conference room.",
}
