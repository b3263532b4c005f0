// Package main is the single-binary entrypoint for the kestrel flight
// software kernel.
package main

import "github.com/kestrel-flight/kestrel/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
