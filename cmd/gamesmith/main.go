package main

import (
	"gamesmith/cli"
)

func main() {
	cli.Execute()
}
