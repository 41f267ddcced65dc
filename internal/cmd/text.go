package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PauloHFS/llm-bootcamp/internal/textgen"
)

// argText joins the positional arguments. A single "-" reads stdin and no
// arguments selects the fallback.
func argText(cmd *cobra.Command, args []string, fallback string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	if len(args) == 0 {
		return fallback, nil
	}
	return strings.Join(args, " "), nil
}

func newCompleteCmd(a *app) *cobra.Command {
	var (
		style string
		all   bool
	)
	cmd := &cobra.Command{
		Use:   "complete [prompt]",
		Short: "Run a legacy text completion with one of the style presets",
		Long: fmt.Sprintf(`Run a prompt through the completions endpoint.

Styles: %s. Without a prompt the style's example prompt is used.`, strings.Join(textgen.PresetNames(), ", ")),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := textgen.LookupPreset(style); err != nil {
				return err
			}
			client, err := a.openAI()
			if err != nil {
				return err
			}
			styles := []string{style}
			if all {
				styles = textgen.PresetNames()
			}

			for _, s := range styles {
				prompt, err := argText(cmd, args, textgen.Examples[s])
				if err != nil {
					return err
				}
				header(a.out, strings.ToUpper(s[:1])+s[1:]+" completion")
				label(a.out, "Prompt", prompt)
				text, u, err := textgen.Complete(cmd.Context(), client, a.cfg.Models.Completion, s, prompt)
				if err != nil {
					return err
				}
				label(a.out, "Completion", text)
				usage(a.out, u)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&style, "style", "s", "basic", "completion preset")
	cmd.Flags().BoolVar(&all, "all", false, "run every preset on its example prompt")
	return cmd
}

func newSummarizeCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "summarize [text|-]",
		Short: "Summarize an article",
		RunE: func(cmd *cobra.Command, args []string) error {
			article, err := argText(cmd, args, textgen.ExampleArticle)
			if err != nil {
				return err
			}
			if file != "" {
				b, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", file, err)
				}
				article = string(b)
			}

			client, err := a.chatClient()
			if err != nil {
				return err
			}
			summary, err := textgen.NewWriter(client, a.chatModel()).Summarize(cmd.Context(), article)
			if err != nil {
				return err
			}
			header(a.out, "Summary")
			fmt.Fprintln(a.out, summary)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the article from a file")
	return cmd
}

func newTranslateCmd(a *app) *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "translate [text|-]",
		Short: "Translate text into another language",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := argText(cmd, args, textgen.ExampleTranslation)
			if err != nil {
				return err
			}
			client, err := a.chatClient()
			if err != nil {
				return err
			}
			out, err := textgen.NewWriter(client, a.chatModel()).Translate(cmd.Context(), text, to)
			if err != nil {
				return err
			}
			label(a.out, "Original", text)
			label(a.out, "Translation ("+to+")", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&to, "to", "t", "French", "target language")
	return cmd
}
