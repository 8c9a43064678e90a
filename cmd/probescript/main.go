// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Command probescript is an interactive console and stack inspector
// for the runtime's embedding API. It drives a capi.State directly
// rather than a script parser: no bytecode compiler or interpreter is
// part of this module, so its REPL commands operate at the same level an embedding host
// would — pushing values, calling closures, reading the stack back.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/peterh/liner"
	"github.com/rjeczalik/notify"
	"gopkg.in/urfave/cli.v1"

	"github.com/probechain/probe-lang/capi"
	"github.com/probechain/probe-lang/probe"
)

const version = "0.1.0"

func main() {
	app := cli.NewApp()
	app.Name = "probescript"
	app.Usage = "console and stack inspector for the PROBE runtime's embedding API"
	app.Version = version
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config, c", Usage: "path to a TOML runtime config"},
	}
	app.Commands = []cli.Command{
		{
			Name:   "repl",
			Usage:  "start an interactive stack-manipulation console",
			Action: runREPL,
		},
		{
			Name:   "inspect",
			Usage:  "push a few demo values and render the stack as a table",
			Action: runInspect,
		},
		{
			Name:      "watch",
			Usage:     "watch a chunk-cache directory and report file changes",
			ArgsUsage: "<dir>",
			Action:    runWatch,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func openInstance(c *cli.Context) (*probe.Instance, error) {
	cfgPath := c.GlobalString("config")
	if cfgPath == "" {
		return probe.NewState(nil)
	}
	cfg, err := probe.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	return probe.NewState(cfg)
}

// runREPL drives a liner-backed console over a single capi.State. Each
// line is one of: "help", "push.number N", "push.string S", "push.bool B",
// "pop", "top", "stack", "quit" (or "exit").
func runREPL(c *cli.Context) error {
	in, err := openInstance(c)
	if err != nil {
		return err
	}
	defer in.Close()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Println("probescript console -- type 'help' for commands, 'quit' to exit")
	for {
		input, err := line.Prompt("probescript> ")
		if err == liner.ErrPromptAborted || err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)
		if input == "quit" || input == "exit" {
			return nil
		}
		if err := dispatch(in.State, input); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	}
}

func dispatch(st *capi.State, input string) error {
	fields := strings.Fields(input)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "help":
		fmt.Println("commands: push.number N | push.string S | push.bool true|false | pop | top | stack | quit")
		return nil
	case "push.number":
		if len(args) != 1 {
			return fmt.Errorf("usage: push.number N")
		}
		n, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return err
		}
		st.PushNumber(n)
		return nil
	case "push.string":
		st.PushString(strings.Join(args, " "))
		return nil
	case "push.bool":
		if len(args) != 1 {
			return fmt.Errorf("usage: push.bool true|false")
		}
		st.PushBoolean(args[0] == "true")
		return nil
	case "pop":
		st.Pop(1)
		return nil
	case "top":
		fmt.Println(st.GetTop())
		return nil
	case "stack":
		renderStack(st)
		return nil
	default:
		return fmt.Errorf("unknown command %q (try 'help')", cmd)
	}
}

// runInspect pushes a handful of demo values of different types and
// renders the resulting stack, a quick smoke test of the push/query
// groups without needing a REPL session.
func runInspect(c *cli.Context) error {
	in, err := openInstance(c)
	if err != nil {
		return err
	}
	defer in.Close()

	st := in.State
	st.PushNumber(42)
	st.PushString("hello")
	st.PushBoolean(true)
	st.PushNil()
	renderStack(st)
	return nil
}

func renderStack(st *capi.State) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Index", "Type", "Value"})
	top := st.GetTop()
	for i := 1; i <= top; i++ {
		tag := st.Type(i)
		table.Append([]string{strconv.Itoa(i), tag.String(), st.DebugString(i)})
	}
	table.Render()
}

// runWatch watches dir (typically a chunk-cache directory) and prints a
// line every time a file inside it changes, useful for observing a
// long-running host's chunk-cache churn during development.
func runWatch(c *cli.Context) error {
	dir := c.Args().First()
	if dir == "" {
		return fmt.Errorf("usage: probescript watch <dir>")
	}

	events := make(chan notify.EventInfo, 8)
	if err := notify.Watch(dir+"/...", events, notify.All); err != nil {
		return err
	}
	defer notify.Stop(events)

	fmt.Printf("watching %s (ctrl-c to stop)\n", dir)
	for ei := range events {
		fmt.Printf("%s %s\n", ei.Event(), ei.Path())
	}
	return nil
}
