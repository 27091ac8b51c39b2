package main

import "github.com/mcoot/turnrelay/internal/cli"

func main() {
	cli.Execute()
}
