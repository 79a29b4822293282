package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prxssh/rabbitcore/internal/logging"
)

func main() {
	slog.SetDefault(logging.New(os.Stderr, nil))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
