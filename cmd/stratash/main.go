package main

import (
	"github.com/robotalks/strata.go/pkg/cli/sh"
	"github.com/robotalks/strata.go/pkg/config"

	_ "github.com/robotalks/strata.go/pkg/cli/cmds/all"
)

func init() {
	config.SetupFlags()
}

func main() {
	sh.Main()
}
