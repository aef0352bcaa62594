// Package main is the entrypoint for spawner's controller and drone
// daemons and their client CLI.
package main

import "github.com/axelav/spawner/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
