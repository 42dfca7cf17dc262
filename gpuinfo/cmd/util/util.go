// Copyright 2026 The gVisor Authors.
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

// Package util contains helpers shared by the gpuinfo commands.
package util

import (
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"gvisor.dev/gpudrm/pkg/log"
)

// ErrorLogger is where error messages are also written, if set.
var ErrorLogger io.Writer

// report logs to stderr and the error logger.
func report(format string, args ...any) {
	log.Warningf(format, args...)
	msg := fmt.Sprintf("gpuinfo: "+format+"\n", args...)
	fmt.Fprint(os.Stderr, msg)
	if ErrorLogger != nil {
		fmt.Fprint(ErrorLogger, msg)
	}
}

// Fatalf logs to stderr and the error logger, then exits. Deferred calls do
// not run; commands holding open devices use Errorf instead.
func Fatalf(format string, args ...any) {
	report(format, args...)
	os.Exit(128)
}

// Errorf logs to stderr and the error logger and returns
// subcommands.ExitFailure.
func Errorf(format string, args ...any) subcommands.ExitStatus {
	report(format, args...)
	return subcommands.ExitFailure
}
