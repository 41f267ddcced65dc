package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/PauloHFS/llm-bootcamp/internal/chat"
	"github.com/PauloHFS/llm-bootcamp/internal/db"
)

func newChatCmd(a *app) *cobra.Command {
	var (
		noStream    bool
		ephemeral   bool
		system      string
		sessionID   string
		demo        bool
		once        bool
		temperature float64
	)
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the assistant",
		Long: `Start an interactive chat. Conversations are saved to the state database
and can be continued later with --session.

With --once the message given as argument is sent, the reply printed and the
command exits. --demo streams a few canned prompts instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := a.chatClient()
			if err != nil {
				return err
			}

			var sess *chat.Session
			if sessionID != "" {
				store, err := a.store(ctx)
				if err != nil {
					return err
				}
				if sess, err = chat.Resume(ctx, client, a.chatModel(), store, sessionID); err != nil {
					return fmt.Errorf("failed to resume session %s: %w", sessionID, err)
				}
			} else {
				sess = chat.NewSession(client, a.chatModel(), system)
			}
			sess.Stream = !noStream
			if cmd.Flags().Changed("temperature") {
				sess.Temperature = temperature
			}

			if demo {
				return chat.RunDemo(ctx, sess, a.out)
			}

			if sess.Store == nil && !ephemeral {
				store, err := a.store(ctx)
				if err != nil {
					return err
				}
				title := "Chat " + time.Now().Format("2006-01-02 15:04")
				if once && len(args) > 0 {
					title = truncate(args[0], 50)
				}
				if err := sess.Persist(ctx, store, title); err != nil {
					return err
				}
			}

			if once {
				msg, err := argText(cmd, args, "")
				if err != nil {
					return err
				}
				if msg == "" {
					return fmt.Errorf("--once needs a message")
				}
				var onDelta func(string)
				if sess.Stream {
					onDelta = func(d string) { fmt.Fprint(a.out, d) }
				}
				reply, err := sess.Send(ctx, msg, onDelta)
				if err != nil {
					return err
				}
				if !sess.Stream {
					fmt.Fprint(a.out, reply.Content)
				}
				fmt.Fprintln(a.out)
				return nil
			}

			if sess.ID != "" {
				colorDim.Fprintf(a.out, "session %s\n", sess.ID)
			}
			return chat.REPL(ctx, sess, cmd.InOrStdin(), a.out)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&noStream, "no-stream", false, "wait for the full reply instead of streaming")
	f.BoolVar(&ephemeral, "ephemeral", false, "do not save the conversation")
	f.StringVar(&system, "system", chat.DefaultSystemPrompt, "system prompt for a new conversation")
	f.StringVar(&sessionID, "session", "", "continue a saved conversation")
	f.BoolVar(&demo, "demo", false, "run the canned streaming examples")
	f.BoolVar(&once, "once", false, "send one message and exit")
	f.Float64Var(&temperature, "temperature", chat.DefaultTemperature, "sampling temperature")
	cmd.MarkFlagsMutuallyExclusive("demo", "once")
	return cmd
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage saved conversations",
	}

	var page, perPage int
	list := &cobra.Command{
		Use:   "list",
		Short: "List saved conversations, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			res, err := store.List(cmd.Context(), db.PagingParams{Page: page, PerPage: perPage})
			if err != nil {
				return err
			}
			if len(res.Items) == 0 {
				colorDim.Fprintln(a.out, "No saved conversations.")
				return nil
			}
			tw := table(a.out)
			fmt.Fprintln(tw, "ID\tTITLE\tMESSAGES\tUPDATED")
			for _, s := range res.Items {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.ID, s.Title, s.Messages, s.UpdatedAt.Local().Format("2006-01-02 15:04"))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			colorDim.Fprintln(a.out, res.Footer("conversations"))
			return nil
		},
	}
	list.Flags().IntVar(&page, "page", 1, "page number")
	list.Flags().IntVar(&perPage, "per-page", 10, "conversations per page")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			h, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if h.System != "" {
				label(a.out, "system", h.System)
			}
			for _, m := range h.Turns() {
				label(a.out, string(m.Role), m.Content)
			}
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			success(a.out, "Deleted conversation %s", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, show, del)
	return cmd
}
