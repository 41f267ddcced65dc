package cmd

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PauloHFS/llm-bootcamp/internal/agent"
	"github.com/PauloHFS/llm-bootcamp/internal/tools"
)

// registry builds a tool registry from a comma separated list of names.
// Database and search tools open their stores on demand.
func (a *app) registry(ctx context.Context, names string) (*tools.Registry, error) {
	var defs []tools.Definition
	for _, n := range strings.Split(names, ",") {
		switch n = strings.TrimSpace(n); n {
		case "":
		case tools.CalculateName:
			defs = append(defs, tools.Calculator())
		case tools.WeatherName:
			defs = append(defs, tools.Weather())
		case tools.DatabaseName:
			pool, err := a.demoDB(ctx)
			if err != nil {
				return nil, err
			}
			defs = append(defs, tools.Database(pool.Read))
		case tools.SearchName:
			idx, err := a.index(ctx)
			if err != nil {
				return nil, err
			}
			defs = append(defs, tools.DocumentSearch(idx))
		default:
			return nil, fmt.Errorf("%w: %s", tools.ErrUnknownTool, n)
		}
	}
	return tools.NewRegistry(defs...)
}

var defaultTools = tools.CalculateName + "," + tools.WeatherName

func newAssistantCmd(a *app) *cobra.Command {
	var toolNames, system string
	cmd := &cobra.Command{
		Use:   "assistant [prompt]",
		Short: "Talk to the Responses API with function tools",
		Long: fmt.Sprintf(`Send a prompt to the Responses API. Function calls are executed locally and
their results sent back until the model answers. Without a prompt an
interactive session starts; each turn continues the previous response.

Tools: %s, %s, %s, %s.`, tools.CalculateName, tools.WeatherName, tools.DatabaseName, tools.SearchName),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := a.openAI()
			if err != nil {
				return err
			}
			reg, err := a.registry(ctx, toolNames)
			if err != nil {
				return err
			}

			asst := agent.NewAssistant(client, reg, a.cfg.Models.Responses)
			asst.Instructions = system
			asst.OnStep = func(s agent.Step) {
				colorDim.Fprintf(a.out, "[tool] %s(%s) -> %s%s\n", s.Tool, s.Arguments, s.Output, s.Error)
			}

			ask := func(input string) error {
				reply, err := asst.Ask(ctx, input)
				if err != nil {
					return err
				}
				colorSuccess.Fprint(a.out, "Assistant: ")
				fmt.Fprintln(a.out, reply.Output)
				colorDim.Fprintf(a.out, "tokens: %d\n", reply.Usage.TotalTokens)
				return nil
			}

			if len(args) > 0 {
				return ask(strings.Join(args, " "))
			}

			fmt.Fprintln(a.out, "Ask anything. Type 'exit' to quit.")
			sc := bufio.NewScanner(cmd.InOrStdin())
			for {
				colorHeader.Fprint(a.out, "\nYou: ")
				if !sc.Scan() {
					fmt.Fprintln(a.out)
					return sc.Err()
				}
				line := strings.TrimSpace(sc.Text())
				switch line {
				case "":
					continue
				case "exit", "quit":
					return nil
				}
				if err := ask(line); err != nil {
					if ctx.Err() != nil {
						return err
					}
					warn(a.out, "Error: %v", err)
				}
			}
		},
	}
	cmd.Flags().StringVar(&toolNames, "tools", defaultTools, "comma separated tools to expose, empty for none")
	cmd.Flags().StringVar(&system, "system", "", "instructions for the assistant")
	return cmd
}

func newAgentCmd(a *app) *cobra.Command {
	var toolNames, system string
	var maxIter int
	cmd := &cobra.Command{
		Use:   "agent <task>",
		Short: "Run the local tool-calling agent over chat completions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := a.chatClient()
			if err != nil {
				return err
			}
			reg, err := a.registry(ctx, toolNames)
			if err != nil {
				return err
			}

			r := agent.New(client, reg, a.chatModel())
			r.MaxIterations = maxIter
			r.OnStep = func(s agent.Step) {
				colorDim.Fprintf(a.out, "[step %d] %s(%s) -> %s%s\n", s.Iteration, s.Tool, s.Arguments, s.Output, s.Error)
			}

			res, err := r.Run(ctx, system, strings.Join(args, " "))
			if err != nil {
				return err
			}
			header(a.out, "Answer")
			fmt.Fprintln(a.out, res.Output)
			usage(a.out, res.Usage)
			return nil
		},
	}
	cmd.Flags().StringVar(&toolNames, "tools", defaultTools+","+tools.DatabaseName, "comma separated tools to expose")
	cmd.Flags().StringVar(&system, "system", agent.DefaultInstructions, "agent instructions")
	cmd.Flags().IntVar(&maxIter, "max-iterations", agent.DefaultMaxIterations, "stop after this many model calls")
	return cmd
}
