package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/PauloHFS/llm-bootcamp/internal/moderation"
)

func newModerateCmd(a *app) *cobra.Command {
	var (
		threshold  float64
		categories string
		examples   bool
		top        int
	)
	cmd := &cobra.Command{
		Use:   "moderate [text...]",
		Short: "Check texts against the moderation model",
		Long: `Send each argument to the moderation endpoint and print the flagged
categories and highest scores. --threshold and --categories add custom
limits on top of the model's own decision, e.g.

  bootcamp moderate --threshold 0.5 --categories violence=0.2,hate=0.1 "some text"

` + moderation.Guidelines,
		RunE: func(cmd *cobra.Command, args []string) error {
			texts := args
			if examples || len(texts) == 0 {
				texts = append([]string{moderation.SafeExample, moderation.EducationalExample, moderation.CategoryExample}, moderation.BatchExamples...)
			}

			client, err := a.openAI()
			if err != nil {
				return err
			}
			svc := moderation.NewService(client, a.cfg.Models.Moderation)
			if cmd.Flags().Changed("threshold") || categories != "" {
				if threshold < 0 || threshold > 1 {
					return fmt.Errorf("threshold must be between 0 and 1, got %g", threshold)
				}
				svc.Default = threshold
				svc.Thresholds = map[string]float64{}
				if categories != "" {
					if svc.Thresholds, err = moderation.ParseThresholds(categories); err != nil {
						return err
					}
				}
			}

			results, err := svc.CheckBatch(cmd.Context(), texts)
			if err != nil {
				return err
			}
			for i, r := range results {
				printModeration(a.out, i+1, r, top)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.Float64Var(&threshold, "threshold", moderation.ThresholdMedium, "default custom threshold between 0 and 1")
	f.StringVar(&categories, "categories", "", "per-category thresholds, e.g. violence=0.2,hate=0.1")
	f.BoolVar(&examples, "examples", false, "moderate the built-in example texts")
	f.IntVar(&top, "top", 3, "number of highest scores to show")
	return cmd
}

func printModeration(w io.Writer, n int, r moderation.Result, top int) {
	header(w, fmt.Sprintf("Text %d", n))
	fmt.Fprintln(w, r.Text)
	if r.Flagged {
		warn(w, "FLAGGED")
		for _, c := range r.Flags {
			fmt.Fprintf(w, "  - %s: %s\n", c, moderation.Describe(c))
		}
	} else {
		success(w, "not flagged")
	}
	for _, s := range r.Top(top) {
		colorDim.Fprintf(w, "  %-24s %.6f\n", s.Category, s.Score)
	}
	for _, s := range r.Exceeded {
		warn(w, "  over threshold: %s (%.4f)", s.Category, s.Score)
	}
}
