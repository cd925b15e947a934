package main

import "github.com/package-linker/cmd/cli/cmd"

func main() {
	cmd.Execute()
}
