package main

import "songdwh/cmd"

func main() {
	cmd.Execute()
}
