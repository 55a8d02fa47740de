// Copyright 2018 The gVisor Authors.
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

// Package rlog provides the small leveled logger used for the
// reservation manager's non-fatal diagnostics: the kind of thing the
// original logged via bootverbose printf, not conditions worth
// surfacing as a return value.
package rlog

import (
	"log"
	"os"
)

// Level selects which messages reach the output.
type Level int

const (
	// Warning is always emitted.
	Warning Level = iota
	// Info is emitted unless the logger is quieted.
	Info
	// Debug is emitted only when explicitly enabled.
	Debug
)

var std = log.New(os.Stderr, "reserv: ", log.LstdFlags)

// level is the most verbose enabled level: messages at level or any
// less verbose level are emitted. Debug is off by default.
var level = Info

// SetLevel adjusts the most verbose enabled level.
func SetLevel(l Level) { level = l }

func Warningf(format string, args ...any) {
	if level >= Warning {
		std.Printf(format, args...)
	}
}

func Infof(format string, args ...any) {
	if level >= Info {
		std.Printf(format, args...)
	}
}

func Debugf(format string, args ...any) {
	if level >= Debug {
		std.Printf(format, args...)
	}
}
