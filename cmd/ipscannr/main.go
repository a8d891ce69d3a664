// Command ipscannr discovers live hosts on IPv4 networks.
package main

import "github.com/anstrom/ipscannr/cmd/cli"

// Set by ldflags during release builds.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}
