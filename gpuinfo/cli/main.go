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

// Package cli is the main entrypoint for gpuinfo.
package cli

import (
	"context"
	"flag"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/google/subcommands"

	"gvisor.dev/gpudrm/gpuinfo/cmd"
	"gvisor.dev/gpudrm/gpuinfo/cmd/util"
	"gvisor.dev/gpudrm/gpuinfo/config"
	"gvisor.dev/gpudrm/pkg/log"
)

// logFileOpts expands %COMMAND% in the log file name.
type logFileOpts struct {
	command string
}

// Build implements log.FileOpts.Build.
func (o logFileOpts) Build(pattern string) string {
	return strings.ReplaceAll(pattern, "%COMMAND%", o.command)
}

// Main is the main entrypoint.
func Main() {
	// Register all commands.
	forEachCmd(subcommands.Register)

	// Register with the main command line.
	config.RegisterFlags(flag.CommandLine)

	// All subcommands must be registered before flag parsing.
	flag.Parse()

	// Create a new Config from the flags.
	conf, err := config.NewFromFlags(flag.CommandLine)
	if err != nil {
		util.Fatalf("%v", err)
	}

	subcommand := flag.CommandLine.Arg(0)

	var out io.Writer = os.Stderr
	if conf.LogFilename != "" {
		f, err := log.OpenFile(conf.LogFilename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, logFileOpts{command: subcommand})
		if err != nil {
			util.Fatalf("error opening log file %q: %v", conf.LogFilename, err)
		}
		out = f
		util.ErrorLogger = f
	}
	log.SetTarget(newEmitter(conf.LogFormat, out))
	switch {
	case conf.Debug:
		log.SetLevel(log.Debug)
	case conf.LogFilename == "":
		// Keep stderr for warnings unless asked otherwise.
		log.SetLevel(log.Warning)
	}

	log.Infof("%s, %s, PID %d", runtime.Version(), runtime.GOARCH, os.Getpid())
	log.Infof("Args: %v", os.Args)
	log.Debugf("Config: %+v", *conf)

	// Call the subcommand and pass in the configuration.
	subcmdCode := subcommands.Execute(context.Background(), conf)
	if subcmdCode != subcommands.ExitSuccess {
		log.Warningf("Failure to execute command, err: %v", subcmdCode)
	}
	os.Exit(int(subcmdCode))
}

// forEachCmd invokes the passed callback for each command supported by
// gpuinfo.
func forEachCmd(cb func(cmd subcommands.Command, group string)) {
	// Help and flags commands are generated automatically.
	cb(subcommands.HelpCommand(), "")
	cb(subcommands.FlagsCommand(), "")
	cb(subcommands.CommandsCommand(), "")

	const inspectGroup = "inspect"
	cb(new(cmd.List), inspectGroup)
	cb(new(cmd.Info), inspectGroup)
	cb(new(cmd.Topology), inspectGroup)
	cb(new(cmd.Engines), inspectGroup)
	cb(new(cmd.Memory), inspectGroup)

	const checkGroup = "check"
	cb(new(cmd.Context), checkGroup)
}

func newEmitter(format string, logFile io.Writer) log.Emitter {
	switch format {
	case "json":
		return log.JSONEmitter{Writer: &log.Writer{Next: logFile}}
	default:
		return log.GoogleEmitter{Emitter: &log.Writer{Next: logFile}}
	}
}
