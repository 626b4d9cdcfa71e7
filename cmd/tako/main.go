package main

import "github.com/kumanofoo/tako/internal/cli"

func main() {
	cli.Execute()
}
