package main

import "github.com/mvp-joe/linkgraph/internal/cli"

func main() {
	cli.Execute()
}
