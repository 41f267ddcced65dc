// Package textgen wraps single-prompt generation: legacy completion presets,
// summarization and translation.
package textgen

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/PauloHFS/llm-bootcamp/internal/llm"
)

// Completer is the legacy /v1/completions surface of llm.Client.
type Completer interface {
	Complete(ctx context.Context, req llm.TextCompletionRequest) (*llm.TextCompletionResponse, error)
}

// Preset fixes sampling parameters for a style of completion. Template, when
// set, wraps the user prompt with %s.
type Preset struct {
	Name             string
	MaxTokens        int
	Temperature      float64
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
	Stop             []string
	Template         string
}

var Presets = map[string]Preset{
	"basic": {Name: "basic", MaxTokens: 100, Temperature: 0.7},
	"creative": {
		Name:             "creative",
		MaxTokens:        200,
		Temperature:      0.9,
		TopP:             0.9,
		FrequencyPenalty: 0.1,
		PresencePenalty:  0.1,
	},
	"code": {Name: "code", MaxTokens: 150, Temperature: 0.1, Stop: []string{"\n\n", "```"}},
	"structured": {
		Name:        "structured",
		MaxTokens:   300,
		Temperature: 0.5,
		Template: `
%s

Please provide your response in the following format:
- Summary: [brief summary]
- Key Points: [list of key points]
- Conclusion: [conclusion]
`,
	},
}

// Example prompts per preset.
var Examples = map[string]string{
	"basic":      "Explain the concept of machine learning in simple terms.",
	"creative":   "Write a short story about a robot learning to paint.",
	"code":       "def fibonacci(n):\n    if n <= 1:\n        return n\n    return",
	"structured": "Discuss the benefits and challenges of renewable energy.",
}

func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for n := range Presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func LookupPreset(name string) (Preset, error) {
	p, ok := Presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("unknown style %q (available: %s)", name, strings.Join(PresetNames(), ", "))
	}
	return p, nil
}

func (p Preset) Request(model, prompt string) llm.TextCompletionRequest {
	if p.Template != "" {
		prompt = fmt.Sprintf(p.Template, prompt)
	}
	return llm.TextCompletionRequest{
		Model:            model,
		Prompt:           prompt,
		MaxTokens:        p.MaxTokens,
		Temperature:      p.Temperature,
		TopP:             p.TopP,
		FrequencyPenalty: p.FrequencyPenalty,
		PresencePenalty:  p.PresencePenalty,
		Stop:             p.Stop,
	}
}

// Complete runs prompt through the named preset. The returned text is not
// trimmed so code completions keep their indentation.
func Complete(ctx context.Context, c Completer, model, style, prompt string) (string, llm.Usage, error) {
	p, err := LookupPreset(style)
	if err != nil {
		return "", llm.Usage{}, err
	}
	resp, err := c.Complete(ctx, p.Request(model, prompt))
	if err != nil {
		return "", llm.Usage{}, fmt.Errorf("%s completion failed: %w", style, err)
	}
	return resp.Choices[0].Text, resp.Usage, nil
}

// Writer runs summarization and translation through chat completions.
type Writer struct {
	Client llm.LLMClient
	Model  string
}

func NewWriter(client llm.LLMClient, model string) *Writer {
	return &Writer{Client: client, Model: model}
}

func (w *Writer) generate(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	resp, err := w.Client.Generate(ctx, llm.CompletionRequest{
		Model:       w.Model,
		Messages:    []llm.Message{llm.UserMessage(prompt)},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", err
	}
	if resp.FirstMessage() == nil {
		return "", llm.ErrEmptyResponse
	}
	return strings.TrimSpace(resp.Text()), nil
}

func SummaryPrompt(article string) string {
	return "Please summarize the following article in a concise manner:\n\n" + article + "\n\nSummary:"
}

func (w *Writer) Summarize(ctx context.Context, article string) (string, error) {
	if strings.TrimSpace(article) == "" {
		return "", fmt.Errorf("nothing to summarize")
	}
	out, err := w.generate(ctx, SummaryPrompt(article), 0.5, 150)
	if err != nil {
		return "", fmt.Errorf("failed to summarize: %w", err)
	}
	return out, nil
}

func TranslationPrompt(text, language string) string {
	return fmt.Sprintf("Translate the following text into %s:\n\n%s\n\nTranslation in %s:", language, text, language)
}

func (w *Writer) Translate(ctx context.Context, text, language string) (string, error) {
	if strings.TrimSpace(language) == "" {
		return "", fmt.Errorf("target language is required")
	}
	out, err := w.generate(ctx, TranslationPrompt(text, language), 0.1, 1024)
	if err != nil {
		return "", fmt.Errorf("failed to translate: %w", err)
	}
	return out, nil
}

const ExampleArticle = `OpenAI has developed a suite of powerful AI models that are capable of understanding and generating human-like text.
These models have been applied to a variety of tasks, such as language translation, summarization, and content creation.
The advancements in AI have sparked discussions about ethical use, accessibility, and the potential impact on various industries.`

const ExampleTranslation = "OpenAI provides tools to make AI more accessible and useful for everyone."
