package main

import "github.com/crossbook/event-arb/cmd"

func main() {
	cmd.Execute()
}
