package main

import "github.com/phaserai/schema-migrate/internal/cli"

func main() {
	cli.Execute()
}
