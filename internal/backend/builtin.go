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
	"crypto/sha1"
	"crypto/subtle"
	"log"
	"os"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

// sharedSecretEnvVar names the environment variable the sharedsecret
// back-end reads its expected passphrase from. It is not part of the
// wire protocol; it configures what the server considers authorized.
const sharedSecretEnvVar = "FENCEHUB_SHARED_SECRET"

func sharedSecretFromEnv() string {
	return os.Getenv(sharedSecretEnvVar)
}

// builtins is the closed set of compiled-in back-ends, keyed by the name
// passed as --fence_module. Anything not found here is assumed to be a
// path to a loadable plugin.
var builtins = map[string]func(path string) (Backend, error){
	"null":         func(string) (Backend, error) { return &nullBackend{}, nil },
	"sharedsecret": func(string) (Backend, error) { return newSharedSecretBackend(), nil },
}

// nullBackend always succeeds, without touching any real hardware. Useful
// for protocol-level testing of the server without a real fencing
// mechanism wired up.
type nullBackend struct{}

func (*nullBackend) Off(_ context.Context, nodename string, _ []byte) bool {
	log.Println("null backend: off", nodename)
	return true
}

func (*nullBackend) On(_ context.Context, nodename string, _ []byte) bool {
	log.Println("null backend: on", nodename)
	return true
}

func (*nullBackend) Reboot(_ context.Context, nodename string, _ []byte) bool {
	log.Println("null backend: reboot", nodename)
	return true
}

func (*nullBackend) Close() error { return nil }

// sharedSecretSalt mirrors the teacher's SALT constant used for PBKDF2
// key derivation (server/main.go), repurposed here to derive a comparison
// key from the wire SECRET field instead of a transport cipher key.
const sharedSecretSalt = "fencehub"

// sharedSecretBackend treats the wire SECRET field as a pre-shared
// passphrase: fencing succeeds only if the PBKDF2-derived key matches the
// one configured at startup (via the FENCEHUB_SHARED_SECRET environment
// variable). It never performs a real power action; it demonstrates the
// plugin ABI's auth-material plumbing described in spec.md §4.9.
type sharedSecretBackend struct {
	mu      sync.Mutex
	wantKey []byte
}

func newSharedSecretBackend() *sharedSecretBackend {
	return &sharedSecretBackend{wantKey: deriveKey(sharedSecretFromEnv())}
}

func deriveKey(passphrase string) []byte {
	return pbkdf2.Key([]byte(passphrase), []byte(sharedSecretSalt), 4096, 32, sha1.New)
}

func (b *sharedSecretBackend) authorized(secret []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	got := deriveKey(string(secret))
	return subtle.ConstantTimeCompare(got, b.wantKey) == 1
}

func (b *sharedSecretBackend) Off(_ context.Context, nodename string, secret []byte) bool {
	return b.act("off", nodename, secret)
}

func (b *sharedSecretBackend) On(_ context.Context, nodename string, secret []byte) bool {
	return b.act("on", nodename, secret)
}

func (b *sharedSecretBackend) Reboot(_ context.Context, nodename string, secret []byte) bool {
	return b.act("reboot", nodename, secret)
}

func (b *sharedSecretBackend) act(action, nodename string, secret []byte) bool {
	if !b.authorized(secret) {
		log.Println("sharedsecret backend: rejected", action, "for", nodename, "(secret mismatch)")
		return false
	}
	log.Println("sharedsecret backend:", action, nodename)
	return true
}

func (b *sharedSecretBackend) Close() error { return nil }
