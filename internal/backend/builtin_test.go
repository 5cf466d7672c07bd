package backend

import (
	"context"
	"os"
	"testing"
)

func TestNullBackendAlwaysSucceeds(t *testing.T) {
	b, err := Load("null")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer b.Close()
	if !b.Off(context.Background(), "node7", nil) {
		t.Fatal("expected null backend Off to succeed")
	}
	if !b.On(context.Background(), "node7", nil) {
		t.Fatal("expected null backend On to succeed")
	}
	if !b.Reboot(context.Background(), "node7", nil) {
		t.Fatal("expected null backend Reboot to succeed")
	}
}

func TestSharedSecretBackendAuthorization(t *testing.T) {
	os.Setenv(sharedSecretEnvVar, "s3cret")
	defer os.Unsetenv(sharedSecretEnvVar)

	b, err := Load("sharedsecret")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer b.Close()

	if !b.Off(context.Background(), "node7", []byte("s3cret")) {
		t.Fatal("expected matching secret to authorize fencing")
	}
	if b.On(context.Background(), "node7", []byte("wrong")) {
		t.Fatal("expected mismatched secret to fail closed")
	}
}

func TestLoadUnknownPathAttemptsPlugin(t *testing.T) {
	if _, err := Load("/nonexistent/path/to/module.so"); err == nil {
		t.Fatal("expected error loading a nonexistent plugin path")
	}
}
