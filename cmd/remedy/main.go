package main

import "github.com/mvp-joe/project-remedy/internal/cli"

func main() {
	cli.Execute()
}
