// Copyright © 2025 The cinder authors

package main

import "github.com/cinderlang/cinder/cmd"

func main() {
	cmd.Execute()
}
