package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/zephyrtronium/jlrt"
	// import for side effects
	_ "github.com/zephyrtronium/jlrt/coreext"
)

const historyFile = ".jlrt_history"

func main() {
	cfgPath := flag.String("config", "", "YAML or TOML configuration file")
	verbose := flag.Int("v", -1, "log verbosity; overrides the configuration")
	flag.Parse()

	cfg := jlrt.DefaultConfig()
	if *cfgPath != "" {
		var err error
		cfg, err = jlrt.LoadConfig(*cfgPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	if *verbose >= 0 {
		cfg.LogVerbosity = *verbose
	}
	commonlog.Configure(cfg.LogVerbosity, nil)

	vm := jlrt.NewVMWithConfig(cfg)
	defer vm.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	vm.NotifyInterrupts(ctx)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	home, _ := os.UserHomeDir()
	hist := filepath.Join(home, historyFile)
	if f, err := os.Open(hist); err == nil {
		ln.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(hist); err == nil {
			ln.WriteHistory(f)
			f.Close()
		}
	}()

	c := console{vm: vm, out: os.Stdout}
	for {
		line, err := ln.Prompt("jlrt> ")
		if errors.Is(err, io.EOF) {
			fmt.Println()
			return
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ln.AppendHistory(line)
		if !c.do(line) {
			return
		}
	}
}

// console interprets inspection commands against a VM.
type console struct {
	vm  *jlrt.VM
	out io.Writer
}

const help = `commands:
  :show NAME           show the value bound to NAME
  :type NAME           show the type of NAME and its supertypes
  :subtype A B         test whether type A is a subtype of type B
  :methods NAME        list the methods of a generic function
  :call NAME ARGS...   call a function; ARGS are numbers, true, false,
                       "strings", :symbols, or names
  :gc                  run a collection
  :stats               show collector statistics
  :tasks               show the current task and the run queue
  :quit                exit`

// do runs one command and reports whether the console should continue.
func (c *console) do(line string) bool {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	vm := c.vm
	if cmd == ":quit" {
		return false
	}
	r, stop := vm.Try(func() *jlrt.Object {
		switch cmd {
		case ":help":
			fmt.Fprintln(c.out, help)
		case ":show":
			c.need(args, 1)
			fmt.Fprintln(c.out, vm.Show(c.resolve(args[0])))
		case ":type":
			c.need(args, 1)
			v := c.resolve(args[0])
			t := vm.Typeof(v)
			fmt.Fprint(c.out, vm.TypeString(t))
			if dt, ok := t.Value.(*jlrt.DataType); ok {
				for s := dt.Super; s != nil && s != vm.Any; s = vm.Supertype(s) {
					fmt.Fprint(c.out, " <: ", vm.TypeString(s))
				}
				if t != vm.Any {
					fmt.Fprint(c.out, " <: Any")
				}
			}
			fmt.Fprintln(c.out)
		case ":subtype":
			c.need(args, 2)
			a, b := c.resolve(args[0]), c.resolve(args[1])
			fmt.Fprintln(c.out, vm.Subtype(a, b))
		case ":methods":
			c.need(args, 1)
			fmt.Fprint(c.out, vm.ShowMethodTable(c.resolve(args[0])))
		case ":call":
			if len(args) == 0 {
				return vm.Errorf(":call needs a function name")
			}
			return c.call(args[0], args[1:])
		case ":gc":
			vm.Collect()
			s := vm.Stats()
			fmt.Fprintf(c.out, "freed %d objects (%d bytes)\n", s.LastFreed, s.LastFreedBytes)
		case ":stats":
			fmt.Fprintln(c.out, vm.Stats())
		case ":tasks":
			fmt.Fprintln(c.out, "current:", vm.Show(vm.CurrentTask()))
			fmt.Fprintln(c.out, "queued:", vm.Queued())
		default:
			return vm.Errorf("unknown command %s; try :help", cmd)
		}
		return nil
	})
	switch {
	case stop == jlrt.ExceptionStop:
		fmt.Fprintf(c.out, "%s: %s\n", vm.TypeString(vm.Typeof(r)), vm.ConditionMessage(r))
	case r != nil:
		fmt.Fprintln(c.out, vm.Show(r))
	}
	return true
}

func (c *console) need(args []string, n int) {
	if len(args) != n {
		c.vm.Errorf("expected %d argument(s), got %d", n, len(args))
	}
}

// resolve looks up a name in Main, falling back to Core.
func (c *console) resolve(name string) *jlrt.Object {
	return c.vm.ResolveGlobal(c.vm.MainModule, c.vm.Symbol(name))
}

// call applies the function bound to name to literal arguments.
func (c *console) call(name string, lits []string) *jlrt.Object {
	vm := c.vm
	sl := vm.GCPushSlots(len(lits) + 1)
	defer sl.Pop()
	sl.Slots[0] = c.resolve(name)
	for i, s := range lits {
		sl.Slots[i+1] = c.literal(s)
	}
	return vm.Apply(sl.Slots[0], sl.Slots[1:]...)
}

func (c *console) literal(s string) *jlrt.Object {
	vm := c.vm
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return vm.BoxInt64(n)
	}
	if x, err := strconv.ParseFloat(s, 64); err == nil {
		return vm.BoxFloat64(x)
	}
	switch {
	case s == "true":
		return vm.True
	case s == "false":
		return vm.False
	case s == "nothing":
		return vm.Nothing
	case strings.HasPrefix(s, `"`):
		u, err := strconv.Unquote(s)
		if err != nil {
			return vm.Errorf("bad string literal %s", s)
		}
		return vm.NewString(u)
	case strings.HasPrefix(s, ":") && len(s) > 1:
		return vm.Symbol(s[1:])
	}
	return c.resolve(s)
}
