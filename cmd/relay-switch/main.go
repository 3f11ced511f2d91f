package main

import "github.com/oshokin/relay-switch/cmd/relay-switch/cmd"

func main() {
	cmd.Execute()
}
