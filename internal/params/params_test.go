package params

import (
	"strings"
	"testing"
)

func TestParseServerArgsOK(t *testing.T) {
	cfg, err := ParseServerArgs([]string{
		"--protocol=IPV4",
		"--bind_address=0.0.0.0",
		"--tcp_port=7090",
		"--fence_module=null",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Protocol != "IPV4" || cfg.BindAddress != "0.0.0.0" || cfg.TCPPort != 7090 || cfg.FenceModule != "null" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestParseServerArgsMissingKey(t *testing.T) {
	_, err := ParseServerArgs([]string{"--protocol=IPV4", "--bind_address=0.0.0.0"})
	if err == nil {
		t.Fatal("expected error for missing required keys")
	}
}

func TestParseServerArgsUnknownKey(t *testing.T) {
	_, err := ParseServerArgs([]string{
		"--protocol=IPV4", "--bind_address=0.0.0.0", "--tcp_port=7090",
		"--fence_module=null", "--bogus=1",
	})
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestParseServerArgsDuplicateKeyFatal(t *testing.T) {
	_, err := ParseServerArgs([]string{
		"--protocol=IPV4", "--bind_address=0.0.0.0", "--tcp_port=7090",
		"--fence_module=null", "--tcp_port=9999",
	})
	if err == nil {
		t.Fatal("expected error for duplicate key with conflicting values")
	}
}

func TestParseServerArgsDuplicateEqualValueAlsoFatal(t *testing.T) {
	// Unlike the agent's reader, the server has no equal-value exception:
	// spec.md §4.11 says any repeated key is a fatal init error.
	_, err := ParseServerArgs([]string{
		"--protocol=IPV4", "--protocol=IPV4", "--bind_address=0.0.0.0",
		"--tcp_port=7090", "--fence_module=null",
	})
	if err == nil {
		t.Fatal("expected error for duplicate key, even when equal-valued")
	}
}

func TestParseServerArgsBadProtocol(t *testing.T) {
	_, err := ParseServerArgs([]string{
		"--protocol=ipv4", "--bind_address=0.0.0.0", "--tcp_port=7090", "--fence_module=null",
	})
	if err == nil {
		t.Fatal("expected error for lowercase protocol token")
	}
}

func TestParseAgentInputMetadataOnly(t *testing.T) {
	cfg, err := ParseAgentInput(strings.NewReader("action=metadata\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Action != ActionMetadata {
		t.Fatalf("expected metadata action, got %v", cfg.Action)
	}
}

func TestParseAgentInputFenceRequiresNodenameAndSecret(t *testing.T) {
	_, err := ParseAgentInput(strings.NewReader("action=off\nprotocol=IPV4\nip_address=10.0.0.1\n"))
	if err == nil {
		t.Fatal("expected error: off without nodename/secret")
	}
}

func TestParseAgentInputFenceOK(t *testing.T) {
	input := "action=off\nprotocol=IPV4\nip_address=10.0.0.1\ntcp_port=7090\nnodename=node1\nsecret=s3cret\n"
	cfg, err := ParseAgentInput(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Nodename != "node1" || cfg.Secret != "s3cret" || cfg.TCPPort != 7090 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestParseAgentInputDuplicateEqualWarnsNotFatal(t *testing.T) {
	var warned bool
	orig := warn
	warn = func(string, ...interface{}) { warned = true }
	defer func() { warn = orig }()

	input := "action=metadata\naction=metadata\n"
	cfg, err := ParseAgentInput(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error for equal duplicate: %v", err)
	}
	if cfg.Action != ActionMetadata {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if !warned {
		t.Fatal("expected a warning to be emitted")
	}
}

func TestParseAgentInputDuplicateDifferentFatal(t *testing.T) {
	input := "action=metadata\naction=status\n"
	_, err := ParseAgentInput(strings.NewReader(input))
	if err == nil {
		t.Fatal("expected error for conflicting duplicate key")
	}
}

func TestParseAgentInputUnrecognizedKeyFatal(t *testing.T) {
	input := "action=metadata\nbogus=1\n"
	_, err := ParseAgentInput(strings.NewReader(input))
	if err == nil {
		t.Fatal("expected error for unrecognized key")
	}
}

func TestParseAgentInputUnknownActionFatal(t *testing.T) {
	_, err := ParseAgentInput(strings.NewReader("action=launch\n"))
	if err == nil {
		t.Fatal("expected error for unrecognized action")
	}
}

func TestParseAgentInputDefaultPortForProbe(t *testing.T) {
	input := "action=status\nprotocol=IPV4\nip_address=10.0.0.1\n"
	cfg, err := ParseAgentInput(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TCPPort != DefaultPort {
		t.Fatalf("expected default port %d, got %d", DefaultPort, cfg.TCPPort)
	}
}
