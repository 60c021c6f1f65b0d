// Package main is the entry point for the actionlift CLI.
package main

import "actionlift.dev/pkg/actionlift/cmd"

func main() {
	cmd.Execute()
}
