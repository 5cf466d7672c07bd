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
	"log"
	"net"
	"os"
	"strconv"

	"github.com/mattn/go-colorable"
	"github.com/urfave/cli"

	"github.com/fencehub/fencehub/internal/backend"
	"github.com/fencehub/fencehub/internal/dispatch"
	"github.com/fencehub/fencehub/internal/params"
	"github.com/fencehub/fencehub/internal/pool"
	"github.com/fencehub/fencehub/internal/selector"
	"github.com/fencehub/fencehub/internal/signalctl"
	"github.com/fencehub/fencehub/internal/worker"
)

// MaxConnections is spec.md §3's MAX_CONNECTIONS: the pool capacity, the
// I/O queue's bound, and the worker pool's fixed size all share it.
const MaxConnections = 24

// VERSION is populated via build flags when packaging official binaries.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}
	log.SetOutput(colorable.NewColorableStderr())

	myApp := cli.NewApp()
	myApp.Name = "fencehub-server"
	myApp.Usage = "clustered node-fencing daemon"
	myApp.Version = VERSION
	// The server's --key=value validation (required keys, fatal on
	// unknown/duplicate) cannot be expressed as a cli.Flags schema, so
	// flag parsing is disabled and the raw arguments are handed to
	// internal/params instead.
	myApp.SkipFlagParsing = true
	myApp.Action = run

	if err := myApp.Run(os.Args); err != nil {
		log.Println("fatal:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := params.ParseServerArgs(c.Args())
	if err != nil {
		return err
	}

	be, err := backend.Load(cfg.FenceModule)
	if err != nil {
		return err
	}
	defer be.Close()

	network := "tcp4"
	if cfg.Protocol == "IPV6" {
		network = "tcp6"
	}
	addr := net.JoinHostPort(cfg.BindAddress, strconv.Itoa(cfg.TCPPort))
	ln, err := listen(network, addr)
	if err != nil {
		return err
	}

	p := pool.New(MaxConnections)
	wp := worker.New(MaxConnections, nil)
	sel := selector.New(ln, p, wp)
	// The dispatcher needs the selector's reintegration hook, and the
	// selector needs the worker pool at construction; worker.SetHandle
	// breaks that cycle (see internal/worker's doc comment).
	d := dispatch.New(p, be, sel.Reintegrate)
	wp.SetHandle(d.Handle)
	wp.Start(MaxConnections)

	sig := signalctl.New(sel.Wake)
	defer sig.Stop()

	log.Printf("fencehub-server listening on %s (%s), fence_module=%s", addr, cfg.Protocol, cfg.FenceModule)
	sel.Run(sig.IsSignaled)
	log.Println("fencehub-server shut down cleanly")
	return nil
}
