// Copyright © 2025 The cinder authors

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cinderlang/cinder/compile"
	"github.com/cinderlang/cinder/diagnostic"
	"github.com/cinderlang/cinder/eval"
	"github.com/cinderlang/cinder/runtime"
)

var (
	runExpression bool
	runPrint      bool
)

// runCmd represents the run command.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run cinder code",
	Long:  `Run cinder code supplied via the command line or source files.`,
	Run: func(cmd *cobra.Command, args []string) {
		s, cleanup, err := newSession()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer cleanup()

		for _, arg := range args {
			var out *runtime.Object
			if runExpression {
				out = s.EvalString("<arg>", arg)
			} else {
				f, err := os.Open(arg) //#nosec G304
				if err != nil {
					fmt.Fprintln(os.Stderr, err)
					os.Exit(1)
				}
				out = s.Load(filepath.Base(arg), f)
				f.Close()
			}
			if out.Tag == runtime.TagError {
				d := diagnostic.FromError((*runtime.ErrorVal)(out), runtime.DefaultLangNS)
				r := &diagnostic.Renderer{Color: colorMode()}
				_ = r.Render(os.Stderr, d)
				os.Exit(1)
			}
			if runPrint {
				fmt.Println(out)
			}
		}
	},
}

// newSession builds a session from the persistent flags.  The returned
// cleanup closes any attached unit cache.
func newSession() (*eval.Session, func(), error) {
	cleanup := func() {}
	var configs []eval.Config
	if d := viper.GetDuration("compile-timeout"); d > 0 {
		configs = append(configs, eval.WithAwaitTimeout(d))
	}
	if path := viper.GetString("unit-cache"); path != "" {
		p, err := compile.OpenPersistent(path, binaryVersion())
		if err != nil {
			return nil, nil, err
		}
		cleanup = func() { p.Close() }
		configs = append(configs, eval.WithPersistentCache(p))
	}
	s, err := eval.New(configs...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return s, cleanup, nil
}

// binaryVersion partitions persistent cache entries between releases; a
// unit emitted by one release is never replayed into another.
func binaryVersion() string {
	return version
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVarP(&runExpression, "expression", "e", false,
		"Interpret arguments as expressions")
	runCmd.Flags().BoolVarP(&runPrint, "print", "p", false,
		"Print evaluation results to stdout")
}
