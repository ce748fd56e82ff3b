// Package all registers every shell command set.
package all

import (
	_ "github.com/robotalks/strata.go/pkg/cli/cmds/regs"
	_ "github.com/robotalks/strata.go/pkg/cli/cmds/sensors"
)
