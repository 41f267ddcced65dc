package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PauloHFS/llm-bootcamp/internal/config"
	"github.com/PauloHFS/llm-bootcamp/internal/latency"
	"github.com/PauloHFS/llm-bootcamp/internal/sentiment"
)

func newLatencyCmd(a *app) *cobra.Command {
	var maxTokens int
	cmd := &cobra.Command{
		Use:   "latency [prompt]",
		Short: "Compare response times of the regular, streaming and Responses APIs",
		Long: `Send the same prompt through a regular chat completion, a streamed one and
the Responses API, one after the other, and compare the wall clock times.
The Responses API is only measured for OpenAI providers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.chatClient()
			if err != nil {
				return err
			}
			b := latency.New(client, nil, a.chatModel())
			if a.cfg.Provider == config.ProviderOpenAI || a.cfg.Provider == config.ProviderOpenAISDK {
				native, err := a.openAI()
				if err != nil {
					return err
				}
				b.Responses = native
			}
			if len(args) > 0 {
				b.Prompt = strings.Join(args, " ")
			}
			b.MaxTokens = maxTokens

			label(a.out, "Prompt", b.Prompt)
			results, err := b.Run(cmd.Context())
			if err != nil {
				return err
			}

			for _, m := range results {
				header(a.out, m.Name+" API")
				if m.Err != nil {
					warn(a.out, "failed after %s: %v", m.Total, m.Err)
					continue
				}
				label(a.out, "Response", m.Output)
				if m.FirstToken > 0 {
					label(a.out, "Time to first token", fmt.Sprintf("%.3fs", m.FirstToken.Seconds()))
				}
				label(a.out, "Total time", fmt.Sprintf("%.3fs", m.Total.Seconds()))
			}

			header(a.out, "Comparison")
			base := results[0]
			if base.Err != nil {
				warn(a.out, "the regular API failed, nothing to compare against")
				return nil
			}
			for _, m := range results[1:] {
				if m.Err == nil {
					fmt.Fprintln(a.out, latency.Summary(m.Name, base.Total, m.Total))
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxTokens, "max-tokens", latency.DefaultMaxTokens, "completion token limit")
	return cmd
}

func newSentimentCmd(a *app) *cobra.Command {
	var demo bool
	cmd := &cobra.Command{
		Use:   "sentiment [text...]",
		Short: "Classify the sentiment of texts with structured output",
		RunE: func(cmd *cobra.Command, args []string) error {
			texts := args
			if demo || len(texts) == 0 {
				texts = sentiment.DemoTexts
			}
			client, err := a.chatClient()
			if err != nil {
				return err
			}
			results, err := sentiment.NewAnalyzer(client, a.chatModel()).AnalyzeBatch(cmd.Context(), texts)
			if err != nil {
				return err
			}

			counts := map[sentiment.Sentiment]int{}
			for i, r := range results {
				header(a.out, fmt.Sprintf("Text %d", i+1))
				fmt.Fprintln(a.out, texts[i])
				label(a.out, "Sentiment", fmt.Sprintf("%s %s (confidence %.2f, intensity %s)", r.Label(), r.Sentiment, r.Confidence, r.Intensity))
				label(a.out, "Explanation", r.Explanation)
				if len(r.Keywords) > 0 {
					label(a.out, "Keywords", strings.Join(r.Keywords, ", "))
				}
				counts[r.Sentiment]++
			}

			header(a.out, "Summary")
			for _, s := range []sentiment.Sentiment{sentiment.Positive, sentiment.Negative, sentiment.Neutral} {
				fmt.Fprintf(a.out, "%-9s %d\n", s, counts[s])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&demo, "demo", false, "analyze the built-in example texts")
	return cmd
}
