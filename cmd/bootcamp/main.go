package main

import (
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/PauloHFS/llm-bootcamp/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
