package main

import "neurallog/commands"

func main() {
	commands.Execute()
}
