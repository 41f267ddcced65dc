package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PauloHFS/llm-bootcamp/internal/vector"
)

const previewDims = 5

func newEmbedCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Embeddings: vectors, similarity, classification and search",
	}
	cmd.AddCommand(
		newEmbedTextCmd(a),
		newEmbedSimilarityCmd(a),
		newEmbedClassifyCmd(a),
		newEmbedSearchCmd(a),
		newEmbedIndexCmd(a),
		newEmbedQueryCmd(a),
	)
	return cmd
}

func newEmbedTextCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "text [text...]",
		Short: "Embed one or more texts and show the vectors",
		RunE: func(cmd *cobra.Command, args []string) error {
			texts := args
			if len(texts) == 0 {
				texts = []string{"The food was delicious and the waiter was very friendly."}
			}
			e, err := a.embedder()
			if err != nil {
				return err
			}
			vectors, err := e.EmbedBatch(cmd.Context(), texts)
			if err != nil {
				return err
			}
			for i, v := range vectors {
				header(a.out, fmt.Sprintf("Embedding %d", i+1))
				label(a.out, "Text", texts[i])
				label(a.out, "Dimensions", fmt.Sprint(len(v)))
				n := min(previewDims, len(v))
				label(a.out, fmt.Sprintf("First %d values", n), fmt.Sprint(v[:n]))
			}
			usage(a.out, e.Usage())
			return nil
		},
	}
}

func newEmbedSimilarityCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "similarity [text-a text-b]",
		Short: "Cosine similarity between two texts",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("expected two texts, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			pair := vector.SimilarityPair
			if len(args) == 2 {
				pair = [2]string{args[0], args[1]}
			}
			e, err := a.embedder()
			if err != nil {
				return err
			}
			vectors, err := e.EmbedBatch(cmd.Context(), pair[:])
			if err != nil {
				return err
			}
			label(a.out, "Text 1", pair[0])
			label(a.out, "Text 2", pair[1])
			label(a.out, "Cosine similarity", fmt.Sprintf("%.4f", vector.Cosine(vectors[0], vectors[1])))
			return nil
		},
	}
}

func newEmbedClassifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "classify [text]",
		Short: "Category coherence, and the closest category for a text",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.embedder()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			header(a.out, "Category coherence")
			byCategory := make(map[string][][]float64, len(vector.Categories))
			for _, c := range vector.Categories {
				vectors, err := e.EmbedBatch(ctx, c.Texts)
				if err != nil {
					return fmt.Errorf("failed to embed %s texts: %w", c.Name, err)
				}
				byCategory[c.Name] = vectors
				label(a.out, c.Name, fmt.Sprintf("%.3f", vector.Coherence(vectors)))
			}

			if len(args) == 0 {
				return nil
			}
			text := strings.Join(args, " ")
			qv, err := e.Embed(ctx, text)
			if err != nil {
				return err
			}

			best, bestScore := "", -2.0
			header(a.out, "Classification")
			for _, c := range vector.Categories {
				var sum float64
				for _, v := range byCategory[c.Name] {
					sum += vector.Cosine(qv, v)
				}
				score := sum / float64(len(byCategory[c.Name]))
				label(a.out, c.Name, fmt.Sprintf("%.3f", score))
				if score > bestScore {
					best, bestScore = c.Name, score
				}
			}
			success(a.out, "%q looks like %s", text, best)
			return nil
		},
	}
}

func newEmbedSearchCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Rank the example corpus against a query, in memory",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := vector.SearchQuery
			if len(args) > 0 {
				query = strings.Join(args, " ")
			}
			e, err := a.embedder()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			docs, err := e.EmbedBatch(ctx, vector.SearchCorpus)
			if err != nil {
				return err
			}
			qv, err := e.Embed(ctx, query)
			if err != nil {
				return err
			}

			label(a.out, "Query", query)
			for i, s := range vector.Rank(qv, vector.SearchCorpus, docs) {
				if limit > 0 && i >= limit {
					break
				}
				fmt.Fprintf(a.out, "%d. [%.4f] %s\n", i+1, s.Similarity, s.Text)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show only the top n results")
	return cmd
}

// readLines returns the non-empty lines of path.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if l := strings.TrimSpace(sc.Text()); l != "" {
			lines = append(lines, l)
		}
	}
	return lines, sc.Err()
}

func newEmbedIndexCmd(a *app) *cobra.Command {
	var (
		file  string
		demo  bool
		reset bool
	)
	cmd := &cobra.Command{
		Use:   "index [text...]",
		Short: "Store documents and their embeddings in the state database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			idx, err := a.index(ctx)
			if err != nil {
				return err
			}
			if reset {
				if err := idx.Reset(ctx); err != nil {
					return err
				}
				colorDim.Fprintln(a.out, "Index cleared.")
			}

			texts := append([]string(nil), args...)
			if file != "" {
				lines, err := readLines(file)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", file, err)
				}
				texts = append(texts, lines...)
			}
			if demo {
				texts = append(texts, vector.SearchCorpus...)
			}
			if len(texts) == 0 && !reset {
				return fmt.Errorf("nothing to index: pass texts, --file or --demo")
			}

			ids, err := idx.Add(ctx, texts...)
			if err != nil {
				return err
			}
			total, err := idx.Count(ctx)
			if err != nil {
				return err
			}
			success(a.out, "Indexed %d documents (%d in index)", len(ids), total)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "index every non-empty line of a file")
	cmd.Flags().BoolVar(&demo, "demo", false, "index the example corpus")
	cmd.Flags().BoolVar(&reset, "reset", false, "remove all documents first")
	return cmd
}

func newEmbedQueryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "query <query>",
		Short: "Search the stored documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := a.index(cmd.Context())
			if err != nil {
				return err
			}
			results, err := idx.Search(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				warn(a.out, "No documents indexed yet. Try: bootcamp embed index --demo")
				return nil
			}
			for i, r := range results {
				fmt.Fprintf(a.out, "%d. [%.4f] #%d %s\n", i+1, r.Similarity, r.ID, r.Content)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "maximum results")
	return cmd
}
