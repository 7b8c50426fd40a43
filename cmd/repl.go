// Copyright © 2025 The cinder authors

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cinderlang/cinder/repl"
)

// replCmd represents the repl command.
var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive REPL",
	Long: `Start an interactive read-eval-print loop.

Line editing and in-session command history are supported via readline.
Forms may span lines; the prompt continues until delimiters balance.
Use Ctrl-D to exit.

Example REPL session:
  cinder> (+ 1 2)
  3
  cinder> (defn square [x] (* x x))
  #'user/square
  cinder> (square 5)
  25
  cinder> (loop [i 0 acc 0]
            (if (< i 5) (recur (inc i) (+ acc i)) acc))
  10`,
	Run: func(cmd *cobra.Command, args []string) {
		s, cleanup, err := newSession()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer cleanup()
		prompt := filepath.Base(os.Args[0]) + "> "
		repl.RunSession(s, prompt, repl.WithColor(colorMode()))
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}
