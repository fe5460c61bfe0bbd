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

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ZaparooProject/thixx"
)

// setFlags collects repeated -set key=value flags.
type setFlags []string

func (s *setFlags) String() string {
	return strings.Join(*s, ",")
}

func (s *setFlags) Set(v string) error {
	key, _, ok := strings.Cut(v, "=")
	if !ok {
		return fmt.Errorf("%q: want key=value", v)
	}
	key = strings.TrimSpace(key)
	if _, known := thixx.LookupField(key); !known {
		if _, known = thixx.LookupToken(key); !known {
			return fmt.Errorf("unknown field %q", key)
		}
	}
	*s = append(*s, v)
	return nil
}

// checkFlag ticks or clears the checkbox of an optional field. Only flags
// given on the command line are recorded.
type checkFlag struct {
	checks map[string]bool
	field  string
}

func (c checkFlag) IsBoolFlag() bool { return true }

func (c checkFlag) String() string {
	if c.checks == nil {
		return "false"
	}
	return strconv.FormatBool(c.checks[c.field])
}

func (c checkFlag) Set(v string) error {
	on, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	c.checks[c.field] = on
	return nil
}

// recordInput is the record given to write and encode.
type recordInput struct {
	checks   map[string]bool
	jsonPath string
	sets     setFlags
}

func (in *recordInput) register(fs *flag.FlagSet) {
	in.checks = make(map[string]bool)
	fs.StringVar(&in.jsonPath, "json", "", "Read the record from a JSON file (- for stdin)")
	fs.Var(&in.sets, "set", "Set a field as key=value; key is a field name or token (repeatable)")
	fs.Var(checkFlag{checks: in.checks, field: thixx.FieldPT100}, "pt100",
		"Write the PT 100 field; -pt100=false drops it (default: write it when given)")
	fs.Var(checkFlag{checks: in.checks, field: thixx.FieldNiCrNi}, "nicr",
		"Write the NiCr-Ni field; -nicr=false drops it (default: write it when given)")
}

// editor loads the JSON file and the -set flags, flags last, into a form
// and applies the optional field checkboxes.
func (in *recordInput) editor(stdin io.Reader, limit int) (*thixx.Editor, error) {
	r := thixx.Record{}
	if in.jsonPath != "" {
		var src io.Reader = stdin
		if in.jsonPath != "-" {
			f, err := os.Open(in.jsonPath)
			if err != nil {
				return nil, fmt.Errorf("open record: %w", err)
			}
			defer func() { _ = f.Close() }()
			src = f
		}
		imported, err := thixx.ImportJSON(src)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", in.jsonPath, err)
		}
		r = imported
	}

	raw := make(thixx.Record, len(in.sets))
	for _, kv := range in.sets {
		k, v, _ := strings.Cut(kv, "=")
		raw[strings.TrimSpace(k)] = v
	}
	for k, v := range thixx.Sanitize(raw) {
		r[k] = v
	}

	ed := thixx.NewEditor(time.Now(), limit)
	ed.Load(r)
	ed.Update(func(f *thixx.Form) {
		for field, on := range in.checks {
			f.SetFlag(field, on)
		}
	})
	if len(ed.Snapshot()) == 0 {
		return nil, errors.New("no fields given: use -json or -set")
	}
	return ed, nil
}

func runEncode(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var in recordInput
	var base string
	fs := flag.NewFlagSet("encode", flag.ContinueOnError)
	fs.SetOutput(stderr)
	in.register(fs)
	fs.StringVar(&base, "url", "", "Encode as a URL on this base instead of the compact format")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	ed, err := in.editor(stdin, thixx.MaxPayloadSize)
	if err != nil {
		return err
	}
	r := ed.Snapshot()
	if err := thixx.Validate(r); err != nil {
		return errors.New(thixx.Describe(err))
	}

	payload, status := ed.CurrentPayload(), ed.PayloadStatus()
	if base != "" {
		if payload, err = thixx.EncodeURL(r, base); err != nil {
			return err
		}
		status = thixx.StatusOf(payload, thixx.MaxPayloadSize)
	}

	_, _ = fmt.Fprintln(stdout, payload)
	_, _ = fmt.Fprintln(stderr, status)
	if status.Exceeded {
		return thixx.CheckPayload(payload, thixx.MaxPayloadSize)
	}
	return nil
}

func runDecode(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	text := strings.Join(fs.Args(), " ")
	if fs.NArg() == 0 {
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("read payload: %w", err)
		}
		text = string(raw)
	}
	// Compact payloads are passed on the command line with literal "\n".
	text = strings.ReplaceAll(text, `\n`, "\n")

	r, err := thixx.Decode(text)
	if err != nil {
		return fmt.Errorf("%s: %w", strings.TrimSuffix(thixx.Describe(err), "."), err)
	}
	return thixx.ExportJSON(stdout, thixx.Sanitize(r))
}
