package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/PauloHFS/llm-bootcamp/internal/conversation"
)

const (
	banner  = "Welcome to Data Scientist Interview Assistant. Ask your question here or type 'exit' to quit."
	goodbye = "Exiting the chat. Goodbye!"

	clearScreen = "\033[H\033[2J"
)

var (
	colorUser      = color.New(color.FgCyan, color.Bold)
	colorAssistant = color.New(color.FgGreen, color.Bold)
	colorError     = color.New(color.FgRed)
	colorDim       = color.New(color.Faint)
)

var helpText = []string{
	"Available Commands:",
	"  - Just type your message to chat",
	"  - 'exit' - Quit the application",
	"  - 'clear' - Clear the screen",
	"  - 'help' - Show this help message",
	"  - 'history' - Show the conversation so far",
	"  - 'reset' - Forget the conversation and start over",
}

// REPL reads lines from in until "exit" or EOF and writes the conversation
// to out. Request errors are printed and the loop continues.
func REPL(ctx context.Context, s *Session, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, banner)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		colorUser.Fprint(out, "\nYou: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "exit", "quit":
			fmt.Fprintln(out, goodbye)
			return nil
		case "clear":
			fmt.Fprint(out, clearScreen)
			fmt.Fprintln(out, banner)
			continue
		case "help":
			for _, l := range helpText {
				fmt.Fprintln(out, l)
			}
			continue
		case "history":
			printHistory(out, s)
			continue
		case "reset":
			s.Reset()
			colorDim.Fprintln(out, "Conversation cleared.")
			continue
		case "":
			fmt.Fprintln(out, "Please enter a message or use 'help' for commands.")
			continue
		}

		colorAssistant.Fprint(out, "Assistant: ")
		var onDelta func(string)
		if s.Stream {
			onDelta = func(d string) { fmt.Fprint(out, d) }
		}

		reply, err := s.Send(ctx, line, onDelta)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			fmt.Fprintln(out)
			colorError.Fprintf(out, "Error: %v\n", err)
			continue
		}
		if !s.Stream {
			fmt.Fprint(out, reply.Content)
		}
		fmt.Fprintln(out)
	}
}

func printHistory(out io.Writer, s *Session) {
	turns := s.History.Turns()
	if len(turns) == 0 {
		colorDim.Fprintln(out, "No messages yet.")
		return
	}
	for _, m := range turns {
		fmt.Fprintf(out, "%s: %s\n", m.Role, m.Content)
	}
}

// DemoPrompt is one of the canned streaming examples.
type DemoPrompt struct {
	Title       string
	Prompt      string
	Temperature float64
}

var DemoPrompts = []DemoPrompt{
	{"Creative Writing", "Write a short story about a robot learning to paint", 0.8},
	{"Code Explanation", "Explain what this Python code does: def fibonacci(n): return n if n <= 1 else fibonacci(n-1) + fibonacci(n-2)", 0.3},
	{"Math Problem", "Solve this math problem step by step: If a train travels 120 km in 2 hours, what is its speed in km/h?", 0.1},
}

// RunDemo streams each demo prompt as an independent single-turn chat.
func RunDemo(ctx context.Context, s *Session, out io.Writer) error {
	for i, d := range DemoPrompts {
		fmt.Fprintf(out, "\nExample %d: %s\n", i+1, d.Title)

		one := *s
		one.History = conversation.NewHistory("")
		one.Temperature = d.Temperature
		one.Store = nil

		colorAssistant.Fprint(out, "Assistant: ")
		reply, err := one.Send(ctx, d.Prompt, func(delta string) { fmt.Fprint(out, delta) })
		if err != nil {
			return fmt.Errorf("demo %q: %w", d.Title, err)
		}
		if !one.Stream {
			fmt.Fprint(out, reply.Content)
		}
		fmt.Fprintln(out)
	}
	return nil
}
