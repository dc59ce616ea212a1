package main

import (
	"os"

	"github.com/kalinpl/dreamlog/internal/buildinfo"
	"github.com/kalinpl/dreamlog/internal/interface/cli"
)

func main() {
	if err := cli.NewRoot(buildinfo.GetVersion()).Execute(); err != nil {
		os.Exit(1)
	}
}
