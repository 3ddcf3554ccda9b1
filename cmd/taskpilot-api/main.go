package main

import "github.com/taskpilot/service-api-go/internal/cli"

func main() {
	cli.Execute()
}
