package main

import "ailedger/internal/cli"

func main() {
	cli.Execute()
}
