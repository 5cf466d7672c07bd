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

package backend

import (
	"context"
	"plugin"

	"github.com/pkg/errors"
)

// Exported symbol names a fence module plugin must provide. These mirror
// spec.md §6's ABI (init/destroy/fence_off/fence_on/fence_reboot) under
// Go plugin symbol-resolution instead of a C calling convention.
const (
	symInit        = "Init"
	symDestroy     = "Destroy"
	symFenceOff    = "FenceOff"
	symFenceOn     = "FenceOn"
	symFenceReboot = "FenceReboot"
)

// Expected function signatures for each exported symbol.
type (
	initFunc   func() (interface{}, bool)
	destroyFn  func(interface{})
	actionFunc func(ctx interface{}, nodename string, secret []byte) bool
)

// pluginBackend adapts a dynamically loaded Go plugin to Backend.
type pluginBackend struct {
	ctx     interface{}
	destroy destroyFn
	off     actionFunc
	on      actionFunc
	reboot  actionFunc
}

// LoadPlugin opens the shared object at path, resolves the five ABI
// symbols, and calls Init to obtain a context. Any missing symbol or a
// false success flag from Init is a fatal configuration error (spec.md
// §4.9, §7).
func LoadPlugin(path string) (Backend, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening fence module %q", path)
	}

	initSym, err := p.Lookup(symInit)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", symInit)
	}
	init, ok := initSym.(func() (interface{}, bool))
	if !ok {
		return nil, errors.Errorf("symbol %s has unexpected signature", symInit)
	}

	destroySym, err := p.Lookup(symDestroy)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", symDestroy)
	}
	destroy, ok := destroySym.(func(interface{}))
	if !ok {
		return nil, errors.Errorf("symbol %s has unexpected signature", symDestroy)
	}

	off, err := lookupAction(p, symFenceOff)
	if err != nil {
		return nil, err
	}
	on, err := lookupAction(p, symFenceOn)
	if err != nil {
		return nil, err
	}
	reboot, err := lookupAction(p, symFenceReboot)
	if err != nil {
		return nil, err
	}

	ctx, ok := init()
	if !ok {
		return nil, errors.Errorf("fence module %q: init() returned failure", path)
	}

	return &pluginBackend{ctx: ctx, destroy: destroy, off: off, on: on, reboot: reboot}, nil
}

func lookupAction(p *plugin.Plugin, name string) (actionFunc, error) {
	sym, err := p.Lookup(name)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", name)
	}
	fn, ok := sym.(func(interface{}, string, []byte) bool)
	if !ok {
		return nil, errors.Errorf("symbol %s has unexpected signature", name)
	}
	return fn, nil
}

func (b *pluginBackend) Off(_ context.Context, nodename string, secret []byte) bool {
	return b.off(b.ctx, nodename, secret)
}

func (b *pluginBackend) On(_ context.Context, nodename string, secret []byte) bool {
	return b.on(b.ctx, nodename, secret)
}

func (b *pluginBackend) Reboot(_ context.Context, nodename string, secret []byte) bool {
	return b.reboot(b.ctx, nodename, secret)
}

func (b *pluginBackend) Close() error {
	b.destroy(b.ctx)
	return nil
}
