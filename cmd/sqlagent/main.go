package main

import "github.com/bgunnarsson/sqlagent/internal/cli"

func main() {
	cli.Execute()
}
