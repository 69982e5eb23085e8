package main

import "github.com/example/fasecards/cmd"

func main() {
	cmd.Execute()
}
