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

// Package thixx implements the ThiXX heating-cable inspection protocol:
// the field table, the compact tag encoding, payload sizing, record
// sanitization and the form bridge used to edit records before they are
// written to an NFC tag.
package thixx

// Canonical field names of an inspection protocol.
const (
	FieldHKNr          = "HK.Nr."
	FieldKKS           = "KKS"
	FieldLeistung      = "Leistung"
	FieldSpannung      = "Spannung"
	FieldStrom         = "Strom"
	FieldWiderstand    = "Widerstand"
	FieldRegler        = "Regler"
	FieldSicherheit    = "Sicherheitsregler/Begrenzer"
	FieldWaechter      = "Wächter"
	FieldProjektNr     = "Projekt Nr."
	FieldAnzahl        = "Anzahl Heizkabeleinheiten"
	FieldTrennkasten   = "Trennkasten"
	FieldHeizkabeltyp  = "Heizkabeltyp"
	FieldSchaltung     = "Schaltung"
	FieldPT100         = "PT 100"
	FieldNiCrNi        = "NiCr-Ni"
	FieldGeprueftVon   = "geprüft von"
	FieldAm            = "am"
	FieldDokumentation = "Dokumentation"
)

// Field is one entry of the field table.
type Field struct {
	Name  string // canonical name used by forms and JSON
	Token string // short token used on the wire
	Unit  string // display unit, empty when the value has none
}

// fieldTable is the declared wire order. It never changes at runtime.
var fieldTable = [...]Field{
	{Name: FieldHKNr, Token: "HK"},
	{Name: FieldKKS, Token: "KKS"},
	{Name: FieldLeistung, Token: "P", Unit: "kW"},
	{Name: FieldSpannung, Token: "U", Unit: "V"},
	{Name: FieldStrom, Token: "I", Unit: "A"},
	{Name: FieldWiderstand, Token: "R", Unit: "Ω"},
	{Name: FieldRegler, Token: "Reg", Unit: "°C"},
	{Name: FieldSicherheit, Token: "Sich", Unit: "°C"},
	{Name: FieldWaechter, Token: "Wäch", Unit: "°C"},
	{Name: FieldProjektNr, Token: "Proj"},
	{Name: FieldAnzahl, Token: "Anz", Unit: "Stk"},
	{Name: FieldTrennkasten, Token: "TB", Unit: "Stk"},
	{Name: FieldHeizkabeltyp, Token: "HKT"},
	{Name: FieldSchaltung, Token: "Sch"},
	{Name: FieldPT100, Token: "PT100", Unit: "Stk"},
	{Name: FieldNiCrNi, Token: "NiCr", Unit: "Stk"},
	{Name: FieldGeprueftVon, Token: "Chk"},
	{Name: FieldAm, Token: "Date"},
	{Name: FieldDokumentation, Token: "Doc"},
}

var (
	byName  = make(map[string]Field, len(fieldTable))
	byToken = make(map[string]Field, len(fieldTable))
)

func init() {
	for _, f := range fieldTable {
		byName[f.Name] = f
		byToken[f.Token] = f
	}
}

// Fields returns the field table in declared order.
func Fields() []Field {
	out := make([]Field, len(fieldTable))
	copy(out, fieldTable[:])
	return out
}

// LookupField returns the field with the given canonical name.
func LookupField(name string) (Field, bool) {
	f, ok := byName[name]
	return f, ok
}

// LookupToken returns the field with the given short token.
func LookupToken(token string) (Field, bool) {
	f, ok := byToken[token]
	return f, ok
}

// IsKnownField reports whether name belongs to the field table.
func IsKnownField(name string) bool {
	_, ok := byName[name]
	return ok
}
