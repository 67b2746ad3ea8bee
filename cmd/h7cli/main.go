package main

import (
	"github.com/robotalks/h7link/pkg/cli/sh"
	"github.com/robotalks/h7link/pkg/env"

	_ "github.com/robotalks/h7link/pkg/cli/cmds/h7"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
