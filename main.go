package main

import (
	"os"

	"github.com/ekaya-inc/ekaya-typestore/cmd"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if Version == "dev" {
		if v, ok := os.LookupEnv("GIT_SHA"); ok && v != "" {
			Version = v
		}
	}
	cmd.Version = Version
	cmd.Execute()
}
