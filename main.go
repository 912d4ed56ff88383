package main

import "github.com/seiforesti/prefstore/cmd"

func main() {
	cmd.Execute()
}
