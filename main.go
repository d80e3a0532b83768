package main

import "github.com/example/engdrill/cmd"

func main() {
	cmd.Execute()
}
