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

package uart

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// PortInfo describes a serial port found on the system.
type PortInfo struct {
	Path         string
	VIDPID       string
	Manufacturer string
	Product      string
}

// knownBridges are the USB serial chips PN532 boards usually ship with.
var knownBridges = []string{
	"067B:2303", // Prolific PL2303
	"0403:6001", // FTDI FT232
	"10C4:EA60", // Silicon Labs CP210x
	"1A86:7523", // QinHeng CH340
}

var (
	goodNames         = []string{"usbserial", "slab_usbtouart", "usbmodem", "ttyusb", "ttyacm"}
	goodManufacturers = []string{"ftdi", "silicon labs", "prolific", "qinheng", "future technology devices"}
	readerKeywords    = []string{"pn532", "nfc", "rfid", "13.56"}
)

var listPorts = func() ([]PortInfo, error) {
	detailed, err := enumerator.GetDetailedPortsList()
	if err == nil && len(detailed) > 0 {
		out := make([]PortInfo, 0, len(detailed))
		for _, p := range detailed {
			info := PortInfo{Path: p.Name, Product: p.Product}
			if p.IsUSB {
				info.VIDPID = strings.ToUpper(p.VID + ":" + p.PID)
			}
			out = append(out, info)
		}
		return out, nil
	}

	names, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	out := make([]PortInfo, len(names))
	for i, n := range names {
		out[i] = PortInfo{Path: n}
	}
	return out, nil
}

// Ports lists the serial ports present on the system, the ones most likely
// to carry a PN532 first.
func Ports() ([]string, error) {
	infos, err := listPorts()
	if err != nil {
		return nil, err
	}
	ranked := Rank(infos)
	paths := make([]string, len(ranked))
	for i, p := range ranked {
		paths[i] = p.Path
	}
	return paths, nil
}

// Rank orders ports by how likely they are to be a PN532 reader. Ports with
// equal scores keep their order.
func Rank(ports []PortInfo) []PortInfo {
	out := slices.Clone(ports)
	slices.SortStableFunc(out, func(a, b PortInfo) int {
		return cmp.Compare(score(b), score(a))
	})
	return out
}

func score(p PortInfo) int {
	s := 0
	if slices.Contains(knownBridges, strings.ToUpper(p.VIDPID)) {
		s += 4
	}
	desc := strings.ToLower(p.Product + " " + p.Manufacturer)
	if containsAny(desc, readerKeywords) {
		s += 8
	}
	if containsAny(strings.ToLower(p.Manufacturer), goodManufacturers) {
		s += 2
	}
	if containsAny(strings.ToLower(p.Path), goodNames) {
		s++
	}
	return s
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
