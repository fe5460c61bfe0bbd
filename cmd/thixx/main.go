// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command thixx reads and writes heating circuit inspection records on NFC
// tags through a PN532 reader.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

const usage = `Usage: thixx [flags] <command> [args]

Commands:
  read                      read the next tag and print its record as JSON
  write -json FILE | -set K=V ... [-pt100] [-nicr]
                            write a record to the next tag
  encode -json FILE | -set K=V ... [-url BASE]
                            print the tag payload of a record
  decode [PAYLOAD]          decode a payload (or stdin) and print JSON
  history [-n N] [-clear]   list or clear the protocol history
  history -id ID            print one history record as JSON
  settings                  list the stored settings

Flags:
`

type globalFlags struct {
	configPath string
	device     string
	metrics    string
	debug      bool
	quiet      bool
}

func parseGlobal(args []string, stderr io.Writer) (*globalFlags, []string, error) {
	g := &globalFlags{}
	fs := flag.NewFlagSet("thixx", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&g.configPath, "config", "", "Path to a YAML config file")
	fs.StringVar(&g.device, "device", "", "Device path, or \"mock\" for the simulator")
	fs.StringVar(&g.metrics, "metrics", "", "Serve Prometheus metrics on this address")
	fs.BoolVar(&g.debug, "debug", false, "Enable debug output")
	fs.BoolVar(&g.quiet, "quiet", false, "Only log errors")
	fs.Usage = func() {
		_, _ = fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	if err := parseFlags(fs, args); err != nil {
		return nil, nil, err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return nil, nil, errUsage
	}
	return g, fs.Args(), nil
}

var errUsage = errors.New("usage")

// parseFlags marks parse failures as usage errors. The flag package has
// already printed the problem.
func parseFlags(fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return err
	}
	return fmt.Errorf("%w: %w", errUsage, err)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	g, rest, err := parseGlobal(args, stderr)
	if err != nil {
		return err
	}

	cmd, cmdArgs := rest[0], rest[1:]
	switch cmd {
	case "encode":
		return runEncode(cmdArgs, stdin, stdout, stderr)
	case "decode":
		return runDecode(cmdArgs, stdin, stdout, stderr)
	case "read", "write", "history", "settings":
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		return errUsage
	}

	a, err := newApp(g, stderr)
	if err != nil {
		return err
	}
	defer a.close()

	switch cmd {
	case "read":
		return a.runRead(ctx, stdout)
	case "write":
		return a.runWrite(ctx, cmdArgs, stdin, stdout)
	case "history":
		return a.runHistory(ctx, cmdArgs, stdout)
	default:
		return a.runSettings(ctx, cmdArgs, stdout)
	}
}

func main() {
	os.Exit(mainWithExitCode(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func mainWithExitCode(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			_, _ = fmt.Fprint(stderr, "\nShutting down gracefully...\n")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := run(ctx, args, stdin, stdout, stderr); err != nil {
		switch {
		case errors.Is(err, flag.ErrHelp):
			return 0
		case errors.Is(err, errUsage):
			return 2
		case errors.Is(err, context.Canceled):
			return 0
		}
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", strings.TrimSpace(err.Error()))
		return 1
	}
	return 0
}
