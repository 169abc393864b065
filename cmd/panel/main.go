package main

import "github.com/file-panel/backend/internal/cli"

func main() {
	cli.Execute()
}
