// Package regs provides register commands for the shell.
package regs

import (
	"fmt"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/strata.go/pkg/cli/sh"
)

// Value is a register read result.
type Value struct {
	Address uint64 `json:"address"`
	Value   uint64 `json:"value"`
}

func access(c *ishell.Context) *Access {
	a := Find(sh.ShellFrom(c).Current.Board())
	if a == nil {
		c.Err(fmt.Errorf("board has no registers"))
	}
	return a
}

// Format prints values one per line with widths of a.
func (a *Access) Format(values []Value) string {
	lines := make([]string, len(values))
	for n, v := range values {
		lines[n] = fmt.Sprintf("0x%0*x: 0x%0*x", a.AddrBits/4, v.Address, a.ValueBits/4, v.Value)
	}
	return strings.Join(lines, "\n")
}

var (
	// ReadCmd reads registers.
	ReadCmd = ishell.Cmd{
		Name:    "reg.read",
		Aliases: []string{"rr"},
		Help:    "ADDRESS [COUNT]",
		Func: sh.MustBeOpened(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("ADDRESS required"))
				return
			}
			a := access(c)
			if a == nil {
				return
			}
			address, err := sh.ParseUint("ADDRESS", c.Args[0], a.AddrBits)
			if err != nil {
				c.Err(err)
				return
			}
			count := uint64(1)
			if len(c.Args) > 1 {
				if count, err = sh.ParseUint("COUNT", c.Args[1], 16); err != nil {
					c.Err(err)
					return
				}
			}
			values, err := a.Read(address, int(count))
			if err != nil {
				c.Err(err)
				return
			}
			result := make([]Value, len(values))
			for n, v := range values {
				result[n] = Value{Address: address + uint64(n), Value: v}
			}
			sh.Print(c, result, a.Format(result))
		}),
	}

	// WriteCmd writes a register.
	WriteCmd = ishell.Cmd{
		Name:    "reg.write",
		Aliases: []string{"rw"},
		Help:    "ADDRESS VALUE",
		Func: sh.MustBeOpened(func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("ADDRESS and VALUE required"))
				return
			}
			a := access(c)
			if a == nil {
				return
			}
			address, err := sh.ParseUint("ADDRESS", c.Args[0], a.AddrBits)
			if err != nil {
				c.Err(err)
				return
			}
			value, err := sh.ParseUint("VALUE", c.Args[1], a.ValueBits)
			if err != nil {
				c.Err(err)
				return
			}
			if err := a.Write(address, value); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		}),
	}
)

func init() {
	sh.AddCmds(&ReadCmd, &WriteCmd)
}
