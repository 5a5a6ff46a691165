package main

import "github.com/lowcore/nucleus/cmd"

func main() {
	cmd.Execute()
}
