package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/ebaauw/homebridge-lib-go/pkg/delegate"
	"github.com/ebaauw/homebridge-lib-go/pkg/host/memhost"
)

// Shell plays the host's client app: it reads and writes characteristics
// by accessory id and iid.
type Shell struct {
	bridge   *memhost.Bridge
	platform *delegate.Platform
	out      io.Writer
}

func newShell(b *memhost.Bridge, p *delegate.Platform, out io.Writer) *Shell {
	return &Shell{bridge: b, platform: p, out: out}
}

// Run reads commands until quit, EOF or ctx ends.
func (s *Shell) Run(ctx context.Context, rl *readline.Instance) {
	s.printHelp()
	for ctx.Err() == nil {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			return
		}
		if s.exec(ctx, line) {
			return
		}
	}
}

// exec runs one command line and reports whether the shell should exit.
func (s *Shell) exec(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	args := parts[1:]
	var err error
	switch strings.ToLower(parts[0]) {
	case "help", "?":
		s.printHelp()
	case "list", "ls":
		s.list()
	case "get":
		err = s.get(ctx, args)
	case "set":
		err = s.set(ctx, args)
	case "identify":
		err = s.identify(args)
	case "save":
		if err = s.bridge.Save(); err == nil {
			fmt.Fprintln(s.out, "saved")
		}
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(s.out, "unknown command: %s (type 'help' for commands)\n", parts[0])
	}
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
	}
	return false
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, `commands:
  list                   list accessories, services and characteristics
  get <id> <iid>         read a characteristic
  set <id> <iid> <value> write a characteristic
  identify <id>          identify an accessory
  save                   save the accessory cache
  quit                   exit`)
}

func (s *Shell) list() {
	for _, a := range s.platform.AccessoryDelegates() {
		fmt.Fprintf(s.out, "%s  %s  %s\n", a.ID(), a.Name(), a.Host().UUID())
		for _, sd := range a.Services() {
			fmt.Fprintf(s.out, "  %s (%s)\n", sd.Type().Name, sd.Name())
			for _, c := range sd.Characteristics() {
				if c.Host() == nil {
					continue
				}
				fmt.Fprintf(s.out, "    %3d  %-32s %v\n", c.IID(), c.Key(), c.Value())
			}
		}
	}
}

func (s *Shell) accessory(id string) (*delegate.AccessoryDelegate, error) {
	a := s.platform.AccessoryDelegate(id)
	if a == nil {
		return nil, fmt.Errorf("no accessory %q", id)
	}
	return a, nil
}

func parseIID(arg string) (uint64, error) {
	iid, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid iid %q", arg)
	}
	return iid, nil
}

func (s *Shell) get(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: get <id> <iid>")
	}
	a, err := s.accessory(args[0])
	if err != nil {
		return err
	}
	iid, err := parseIID(args[1])
	if err != nil {
		return err
	}
	v, err := s.bridge.Get(ctx, a.Host().UUID(), iid)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%v\n", v)
	return nil
}

func (s *Shell) set(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return errors.New("usage: set <id> <iid> <value>")
	}
	a, err := s.accessory(args[0])
	if err != nil {
		return err
	}
	iid, err := parseIID(args[1])
	if err != nil {
		return err
	}
	r, err := s.bridge.Set(ctx, a.Host().UUID(), iid, parseValue(strings.Join(args[2:], " ")))
	if err != nil {
		return err
	}
	if r != nil {
		fmt.Fprintf(s.out, "response: %v\n", r)
	}
	return nil
}

func (s *Shell) identify(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: identify <id>")
	}
	a, err := s.accessory(args[0])
	if err != nil {
		return err
	}
	return s.bridge.Identify(a.Host().UUID())
}

// parseValue converts a typed value to bool, int, float64 or string.
func parseValue(arg string) any {
	if b, err := strconv.ParseBool(arg); err == nil {
		return b
	}
	if n, err := strconv.Atoi(arg); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(arg, 64); err == nil {
		return f
	}
	if unq, err := strconv.Unquote(arg); err == nil {
		return unq
	}
	return arg
}
