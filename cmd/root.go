// Copyright © 2025 The cinder authors

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cinderlang/cinder/diagnostic"
)

var (
	cfgFile   string
	colorFlag string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "cinder",
	Short: "cinder is an interactive Lisp with incremental native compilation",
	Long: `cinder is a Lisp-family interactive runtime.  Top-level function
definitions compile through a pluggable backend, unchanged definitions
re-evaluate for free through a structural-hash cache, and everything else
runs on the interpreter.

Getting started:
  cinder run file.cin          Run a source file
  cinder run -e '(+ 1 2)'      Evaluate an expression
  cinder repl                  Start an interactive REPL

Language overview:
  Values are nil, booleans, integers, reals, strings, symbols, keywords,
  lists, vectors, maps, and sets.  nil and false are the only falsey
  values.  Functions are defined with (defn name [args] body) and called
  as (name args).  Namespaces qualify vars: (my.ns/f x).  Iteration uses
  (loop [bindings] ... (recur ...)).

Errors are values: evaluation never panics, and failures carry a
condition, a source span, and the call stack.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.  It is called once by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.cinder.yaml)")
	rootCmd.PersistentFlags().StringVar(&colorFlag, "color", "auto",
		`Control colored output: "auto", "always", or "never".`)
	rootCmd.PersistentFlags().String("unit-cache", "",
		"Path to a persistent compilation unit cache database")
	rootCmd.PersistentFlags().Duration("compile-timeout", 0,
		"Maximum time to wait for one backend compilation (0 waits forever)")
	must(viper.BindPFlag("unit-cache", rootCmd.PersistentFlags().Lookup("unit-cache")))
	must(viper.BindPFlag("compile-timeout", rootCmd.PersistentFlags().Lookup("compile-timeout")))
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func colorMode() diagnostic.ColorMode {
	switch colorFlag {
	case "always":
		return diagnostic.ColorAlways
	case "never":
		return diagnostic.ColorNever
	default:
		return diagnostic.ColorAuto
	}
}

// initConfig reads in a config file and matching environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".cinder")
	}

	viper.SetEnvPrefix("cinder")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
