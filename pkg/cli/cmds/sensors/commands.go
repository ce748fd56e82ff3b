// Package sensors provides the temperature and flash commands for the
// shell.
package sensors

import (
	"encoding/hex"
	"fmt"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/strata.go/pkg/cli/sh"
	"github.com/robotalks/strata.go/pkg/component"
	"github.com/robotalks/strata.go/pkg/component/flash"
)

// MaxFlashRead limits a single flash.read.
const MaxFlashRead = 4096

// Temperature is a temp result.
type Temperature struct {
	ID      uint8   `json:"id"`
	Celsius float32 `json:"celsius"`
}

// FlashData is a flash.read result.
type FlashData struct {
	Address uint32 `json:"address"`
	Data    []byte `json:"data"`
}

// ReadTemperatures reads every temperature sensor of the current board.
func ReadTemperatures(s *sh.Shell) ([]Temperature, error) {
	var result []Temperature
	for _, c := range s.Current.Board().Components() {
		sensor, ok := c.(component.Temperature)
		if !ok {
			continue
		}
		v, err := sensor.Temperature()
		if err != nil {
			return result, err
		}
		result = append(result, Temperature{ID: sensor.ID(), Celsius: v})
	}
	return result, nil
}

// ReadFlash reads size bytes of the board flash at address.
func ReadFlash(s *sh.Shell, address uint32, size int) (*FlashData, error) {
	nv, ok := sh.Component[*flash.Nonvolatile](s)
	if !ok {
		return nil, fmt.Errorf("board has no flash")
	}
	if size < 1 || size > MaxFlashRead {
		return nil, fmt.Errorf("SIZE must be 1..%d", MaxFlashRead)
	}
	data := make([]byte, size)
	if err := nv.ReadBurst(address, data); err != nil {
		return nil, err
	}
	return &FlashData{Address: address, Data: data}, nil
}

var (
	// TempCmd reads the temperature sensors.
	TempCmd = ishell.Cmd{
		Name:    "temp",
		Aliases: []string{"t"},
		Help:    "",
		Func: sh.MustBeOpened(func(c *ishell.Context) {
			temps, err := ReadTemperatures(sh.ShellFrom(c))
			if err != nil {
				c.Err(err)
				return
			}
			if len(temps) == 0 {
				c.Err(fmt.Errorf("board has no temperature sensor"))
				return
			}
			var text string
			for n, t := range temps {
				if n > 0 {
					text += "\n"
				}
				text += fmt.Sprintf("%d: %.2f °C", t.ID, t.Celsius)
			}
			sh.Print(c, temps, text)
		}),
	}

	// FlashReadCmd dumps the board flash.
	FlashReadCmd = ishell.Cmd{
		Name:    "flash.read",
		Aliases: []string{"fr"},
		Help:    "ADDRESS SIZE",
		Func: sh.MustBeOpened(func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("ADDRESS and SIZE required"))
				return
			}
			address, err := sh.ParseUint("ADDRESS", c.Args[0], 32)
			if err != nil {
				c.Err(err)
				return
			}
			size, err := sh.ParseUint("SIZE", c.Args[1], 16)
			if err != nil {
				c.Err(err)
				return
			}
			data, err := ReadFlash(sh.ShellFrom(c), uint32(address), int(size))
			if err != nil {
				c.Err(err)
				return
			}
			sh.Print(c, data, hex.Dump(data.Data))
		}),
	}
)

func init() {
	sh.AddCmds(&TempCmd, &FlashReadCmd)
}
