// Copyright (C) The CellCNV Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cellcnv

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var version = "development"

// commandHandler is one CLI subcommand.
type commandHandler interface {
	RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int
}

var handlers = map[string]commandHandler{
	"import":       &importer{},
	"merge":        &merger{},
	"run":          &runcmd{},
	"export":       &exporter{},
	"export-numpy": &exportNumpy{},
	"ideogram":     &ideogramcmd{},
	"stats":        &statscmd{},

	"version":   versionCommand{},
	"-version":  versionCommand{},
	"--version": versionCommand{},
}

type versionCommand struct{}

func (versionCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fmt.Fprintln(stdout, version)
	return 0
}

func usage(prog string, stderr io.Writer) {
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		if name[0] != '-' {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	fmt.Fprintf(stderr, "usage: %s command [options]\n\ncommands:\n", prog)
	for _, name := range names {
		fmt.Fprintf(stderr, "  %s\n", name)
	}
}

func Main() {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		logrus.StandardLogger().Formatter = &logrus.TextFormatter{DisableTimestamp: true}
	}
	if len(os.Args) < 2 {
		usage(os.Args[0], os.Stderr)
		os.Exit(2)
	}
	handler, ok := handlers[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "%s: unrecognized command %q\n", os.Args[0], os.Args[1])
		usage(os.Args[0], os.Stderr)
		os.Exit(2)
	}
	os.Exit(handler.RunCommand(os.Args[0]+" "+os.Args[1], os.Args[2:], os.Stdin, os.Stdout, os.Stderr))
}
