package main

import "github.com/FranksOps/gitrecon/internal/cli"

func main() {
	cli.Execute()
}
