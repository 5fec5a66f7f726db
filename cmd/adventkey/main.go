package main

import "github.com/jmcleod/adventkey/cmd/adventkey/cmd"

func main() {
	cmd.Execute()
}
