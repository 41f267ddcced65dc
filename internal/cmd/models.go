package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newModelsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List and inspect the models available to your key",
	}

	var filter string
	list := &cobra.Command{
		Use:   "list",
		Short: "List available models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.openAI()
			if err != nil {
				return err
			}
			models, err := client.ListModels(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list models: %w", err)
			}

			header(a.out, "Available models")
			tw := table(a.out)
			fmt.Fprintln(tw, "ID\tOWNED BY\tCREATED")
			n := 0
			for _, m := range models.Data {
				if filter != "" && !strings.Contains(m.ID, filter) {
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", m.ID, m.OwnedBy, m.CreatedAt().Format("2006-01-02"))
				n++
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			colorDim.Fprintf(a.out, "%d models\n", n)
			return nil
		},
	}
	list.Flags().StringVar(&filter, "filter", "", "only show model ids containing this text")

	get := &cobra.Command{
		Use:   "get <model-id>",
		Short: "Show the details of one model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.openAI()
			if err != nil {
				return err
			}
			m, err := client.GetModel(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to retrieve model %q: %w", args[0], err)
			}
			header(a.out, "Model details")
			label(a.out, "ID", m.ID)
			label(a.out, "Object", m.Object)
			label(a.out, "Owned by", m.OwnedBy)
			label(a.out, "Created", m.CreatedAt().Format("2006-01-02 15:04:05"))
			return nil
		},
	}

	cmd.AddCommand(list, get)
	return cmd
}
