// The MIT License (MIT)
//
// Copyright (c) 2024 fencehub contributors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/fencehub/fencehub/internal/clientproto"
	"github.com/fencehub/fencehub/internal/params"
)

// VERSION is populated via build flags when packaging official binaries.
var VERSION = "SELFBUILD"

// dialTimeout bounds how long the agent waits to connect and to read a
// single reply frame; spec.md leaves per-request timeouts undefined for
// the server but the agent, being a short-lived CLI invocation, needs a
// bound to avoid hanging a caller's automation indefinitely.
const dialTimeout = 5 * time.Second

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "fencehub-agent"
	myApp.Usage = "fencing agent for the fencehub cluster node-fencing service"
	myApp.Version = VERSION
	myApp.SkipFlagParsing = true
	myApp.Action = run

	if err := myApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	switch cfg.Action {
	case params.ActionMetadata:
		fmt.Print(params.MetadataXML())
		return nil
	case params.ActionStart, params.ActionStop:
		return nil
	case params.ActionStatus, params.ActionList, params.ActionMonitor:
		return probe(cfg)
	case params.ActionOff, params.ActionOn, params.ActionReboot:
		return fence(cfg)
	default:
		return errorf("unhandled action %q", cfg.Action)
	}
}

// loadConfig prefers command-line arguments when any are given (beyond
// the binary name), falling back to stdin key=value lines, matching
// spec.md §6's "reads lines of key=value from stdin, OR accepts the
// same keys via command-line arguments".
func loadConfig(c *cli.Context) (*params.AgentConfig, error) {
	if len(c.Args()) > 0 {
		return params.ParseAgentArgs(c.Args())
	}
	return params.ParseAgentInput(os.Stdin)
}

func probe(cfg *params.AgentConfig) error {
	client, err := dial(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.CheckConnection(dialTimeout); err != nil {
		color.Red("fencehub-agent: %s probe failed: %v", cfg.Action, err)
		return err
	}
	return nil
}

func fence(cfg *params.AgentConfig) error {
	client, err := dial(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	action := actionFor(cfg.Action)
	ok, err := client.Fence(dialTimeout, action, cfg.Nodename, []byte(cfg.Secret))
	if err != nil {
		return err
	}
	if !ok {
		color.Red("fencehub-agent: %s %s failed", cfg.Action, cfg.Nodename)
		return errorf("%s %s failed", cfg.Action, cfg.Nodename)
	}
	log.Printf("%s %s succeeded", cfg.Action, cfg.Nodename)
	return nil
}

func dial(cfg *params.AgentConfig) (*clientproto.Client, error) {
	network := "tcp4"
	if cfg.Protocol == "IPV6" {
		network = "tcp6"
	}
	return clientproto.Dial(network, cfg.IPAddress, cfg.TCPPort, dialTimeout)
}

func actionFor(a params.AgentAction) clientproto.FenceAction {
	switch a {
	case params.ActionOn:
		return clientproto.FenceOn
	case params.ActionReboot:
		return clientproto.FenceReboot
	default:
		return clientproto.FenceOff
	}
}

func errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
