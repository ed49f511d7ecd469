package main

import "github.com/deploymenttheory/go-reiserfs/cmd"

func main() {
	cmd.Execute()
}
