package main

import "pocket-chat/cli/cmd"

func main() {
	cmd.Execute()
}
