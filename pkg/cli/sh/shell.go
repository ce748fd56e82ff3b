package sh

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/strata.go/pkg/board"
	"github.com/robotalks/strata.go/pkg/boards"
	"github.com/robotalks/strata.go/pkg/bridge"
	"github.com/robotalks/strata.go/pkg/config"
	"github.com/robotalks/strata.go/pkg/enumerate"
	"github.com/robotalks/strata.go/pkg/status"
)

// DiscoverTimeout bounds a discover command.
const DiscoverTimeout = 10 * time.Second

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell  *ishell.Shell
	Config *config.Config
	List   board.List
	// Discover finds boards, config enumerators on List by default.
	Discover func(ctx context.Context) ([]*board.Descriptor, error)

	// Found are the descriptors of the last discover, not yet opened.
	Found   []*board.Descriptor
	Current *board.Instance
	// Address of Current.
	Address string
}

// BoardInfo is what the info command prints.
type BoardInfo struct {
	Name       string          `json:"name"`
	Address    string          `json:"address,omitempty"`
	VID        uint16          `json:"vid"`
	PID        uint16          `json:"pid"`
	Version    []uint16        `json:"version,omitempty"`
	UUID       string          `json:"uuid,omitempty"`
	Components []ComponentInfo `json:"components"`
	Modules    []ComponentInfo `json:"modules,omitempty"`
}

// ComponentInfo names one component of a board.
type ComponentInfo struct {
	Type string `json:"type"`
	ID   uint8  `json:"id"`
}

const (
	shellKey       = "$shell"
	unopenedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&DiscoverCmd,
		&OpenCmd,
		&CloseCmd,
		&InfoCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *config.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
		List:   boards.DefaultList,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unopenedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeOpened wraps command func requires an opened board.
func MustBeOpened(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Current == nil {
			c.Err(fmt.Errorf("no board opened"))
			return
		}
		fn(c)
	}
}

// Print writes v as JSON in JSON mode, otherwise the text.
func Print(c *ishell.Context, v interface{}, text string) {
	if !ShellFrom(c).OutputJSON {
		c.Println(text)
		return
	}
	out, err := json.Marshal(v)
	if err != nil {
		c.Err(err)
		return
	}
	c.Println(string(out))
}

// ParseUint parses a decimal or 0x prefixed argument of at most bits.
func ParseUint(name, arg string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(arg, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("Invalid %s: %v", name, err)
	}
	return v, nil
}

// DiscoverBoards replaces the found descriptors with a new discovery.
func (s *Shell) DiscoverBoards(ctx context.Context) ([]*board.Descriptor, error) {
	s.releaseFound()
	discover := s.Discover
	if discover == nil {
		discover = func(ctx context.Context) ([]*board.Descriptor, error) {
			return enumerate.Discover(ctx, s.List, s.Config.Enumerators(nil)...)
		}
	}
	found, err := discover(ctx)
	s.Found = found
	return found, err
}

func (s *Shell) releaseFound() {
	for _, d := range s.Found {
		if err := d.Release(); err != nil {
			log.Printf("release %s: %v", d, err)
		}
	}
	s.Found = nil
}

// Open opens the found board at index and makes it current. The other
// found boards are released.
func (s *Shell) Open(ctx context.Context, index int) error {
	if index < 0 || index >= len(s.Found) {
		return status.Errorf(status.KindUnknown, status.CodeOutOfBounds, "open", "no board %d, %d found", index, len(s.Found))
	}
	d := s.Found[index]
	s.Found = append(s.Found[:index:index], s.Found[index+1:]...)
	inst, err := enumerate.OpenWithBackoff(ctx, d, nil)
	if err != nil {
		d.Release()
		return err
	}
	s.releaseFound()
	s.CloseBoard()
	s.Current, s.Address = inst, d.Address
	if s.Shell != nil {
		s.Shell.SetPrompt(fmt.Sprintf("%s > ", inst.Entry().Name))
	}
	return nil
}

// CloseBoard closes the current board.
func (s *Shell) CloseBoard() error {
	if s.Current == nil {
		return nil
	}
	err := s.Current.Close()
	s.Current, s.Address = nil, ""
	if s.Shell != nil {
		s.Shell.SetPrompt(unopenedPrompt)
	}
	return err
}

// Info describes the current board.
func (s *Shell) Info() BoardInfo {
	inst := s.Current
	entry := inst.Entry()
	info := BoardInfo{
		Name:       entry.Name,
		Address:    s.Address,
		VID:        entry.VID,
		PID:        entry.PID,
		Components: []ComponentInfo{},
	}
	if v, ok := inst.Bridge().(interface{ VersionInfo() []uint16 }); ok {
		info.Version = v.VersionInfo()
	}
	if ctl := inst.Bridge().Control(); ctl != nil {
		if id, err := bridge.ReadUUID(ctl); err == nil {
			info.UUID = id.String()
		}
	}
	for _, c := range inst.Board().Components() {
		info.Components = append(info.Components, ComponentInfo{Type: c.Type().String(), ID: c.ID()})
	}
	for _, m := range inst.Board().Modules() {
		info.Modules = append(info.Modules, ComponentInfo{Type: m.Type().String(), ID: m.ID()})
	}
	return info
}

// String formats the info for display.
func (info BoardInfo) String() string {
	var w bytes.Buffer
	fmt.Fprintf(&w, "%s [%04x:%04x]", info.Name, info.VID, info.PID)
	if info.Address != "" {
		fmt.Fprintf(&w, " at %s", info.Address)
	}
	if len(info.Version) > 0 {
		fmt.Fprintf(&w, "\nversion %v", info.Version)
	}
	if info.UUID != "" {
		fmt.Fprintf(&w, "\nuuid %s", info.UUID)
	}
	for _, c := range info.Components {
		fmt.Fprintf(&w, "\n  %s %d", c.Type, c.ID)
	}
	for _, m := range info.Modules {
		fmt.Fprintf(&w, "\n  %s %d (module)", m.Type, m.ID)
	}
	return w.String()
}

// Component finds the first component of the current board implementing
// T. ok is false when there is none or no board is opened.
func Component[T any](s *Shell) (T, bool) {
	var zero T
	if s.Current == nil {
		return zero, false
	}
	for _, c := range s.Current.Board().Components() {
		if typed, ok := c.(T); ok {
			return typed, true
		}
	}
	return zero, false
}

// Close releases everything held by the shell.
func (s *Shell) Close() error {
	s.releaseFound()
	return s.CloseBoard()
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	defer s.Close()
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// DiscoverCmd discovers boards.
	DiscoverCmd = ishell.Cmd{
		Name:    "discover",
		Aliases: []string{"list", "l"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			ctx, cancel := context.WithTimeout(context.Background(), DiscoverTimeout)
			defer cancel()
			found, err := s.DiscoverBoards(ctx)
			if err != nil {
				c.Err(err)
			}
			if s.OutputJSON {
				items := make([]string, 0, len(found))
				for _, d := range found {
					items = append(items, d.String())
				}
				Print(c, items, "")
				return
			}
			if len(found) == 0 {
				c.Println("No boards found")
				return
			}
			for n, d := range found {
				c.Printf("%d: %s\n", n, d)
			}
		},
	}

	// OpenCmd opens a discovered board.
	OpenCmd = ishell.Cmd{
		Name:    "open",
		Aliases: []string{"o"},
		Help:    "[INDEX]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(s.Found) == 0 {
				ctx, cancel := context.WithTimeout(context.Background(), DiscoverTimeout)
				_, err := s.DiscoverBoards(ctx)
				cancel()
				if err != nil {
					c.Err(err)
					return
				}
			}
			if len(s.Found) == 0 {
				c.Err(fmt.Errorf("no board discovered"))
				return
			}
			var index int
			switch {
			case len(c.Args) > 0:
				v, err := ParseUint("INDEX", c.Args[0], 16)
				if err != nil {
					c.Err(err)
					return
				}
				index = int(v)
			case len(s.Found) > 1:
				if !s.Interactive {
					c.Err(fmt.Errorf("more than 1 boards discovered in non-interactive mode"))
					return
				}
				items := make([]string, len(s.Found))
				for n, d := range s.Found {
					items[n] = d.String()
				}
				index = s.Shell.MultiChoice(items, "Which one to open?")
			}
			if err := s.Open(context.Background(), index); err != nil {
				c.Err(err)
			}
		},
	}

	// CloseCmd closes the current board.
	CloseCmd = ishell.Cmd{
		Name:    "close",
		Aliases: []string{"c"},
		Help:    "",
		Func: func(c *ishell.Context) {
			if err := ShellFrom(c).CloseBoard(); err != nil {
				c.Err(err)
			}
		},
	}

	// InfoCmd prints the current board.
	InfoCmd = ishell.Cmd{
		Name:    "info",
		Aliases: []string{"i"},
		Help:    "",
		Func: MustBeOpened(func(c *ishell.Context) {
			info := ShellFrom(c).Info()
			Print(c, info, info.String())
		}),
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	conf := config.Default()
	if err := conf.Resolve(flag.CommandLine); err != nil {
		log.Fatalln(err)
	}
	New(conf).Run(flag.Args()...)
}
