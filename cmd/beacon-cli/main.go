package main

import "github.com/dwhitmore/beacon/cmd/beacon-cli/cmd"

func main() {
	cmd.Execute()
}
