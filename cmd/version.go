// Copyright © 2025 The cinder authors

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags.
var version = "devel"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the cinder version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
