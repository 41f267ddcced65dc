package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/PauloHFS/llm-bootcamp/internal/llm"
)

var (
	colorHeader  = color.New(color.FgCyan, color.Bold)
	colorSuccess = color.New(color.FgGreen)
	colorWarn    = color.New(color.FgYellow)
	colorDim     = color.New(color.Faint)
	colorLabel   = color.New(color.Bold)
)

func header(w io.Writer, title string) {
	colorHeader.Fprintf(w, "\n=== %s ===\n", title)
}

func success(w io.Writer, format string, args ...any) {
	colorSuccess.Fprintf(w, format+"\n", args...)
}

func warn(w io.Writer, format string, args ...any) {
	colorWarn.Fprintf(w, format+"\n", args...)
}

func label(w io.Writer, name, value string) {
	colorLabel.Fprintf(w, "%s: ", name)
	fmt.Fprintln(w, value)
}

func usage(w io.Writer, u llm.Usage) {
	if u.TotalTokens == 0 {
		return
	}
	colorDim.Fprintf(w, "tokens: %d prompt + %d completion = %d\n", u.PromptTokens, u.CompletionTokens, u.TotalTokens)
}

func rule(w io.Writer) {
	colorDim.Fprintln(w, strings.Repeat("-", 50))
}

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}
