package main

import (
	"bytes"
	"strings"
	"testing"
)

func runWithArgs(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(append([]string{"supportdesk"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunUsage(t *testing.T) {
	code, out, _ := runWithArgs()
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if !strings.Contains(out, "Usage:") {
		t.Fatalf("expected usage output, got %q", out)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	code, out, _ := runWithArgs("nope")
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(out, "Unknown command") {
		t.Fatalf("expected unknown command output, got %q", out)
	}
}

func TestRunSessionsMissingSubcommand(t *testing.T) {
	code, out, _ := runWithArgs("sessions")
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(out, "Usage: supportdesk sessions") {
		t.Fatalf("expected sessions usage, got %q", out)
	}

	code, out, _ = runWithArgs("sessions", "bogus")
	if code != 1 || !strings.Contains(out, "Unknown sessions command") {
		t.Fatalf("got %d %q", code, out)
	}
}

func TestRunVersion(t *testing.T) {
	for _, arg := range []string{"version", "--version", "-v"} {
		code, out, _ := runWithArgs(arg)
		if code != 0 || out != "supportdesk "+Version+"\n" {
			t.Errorf("%s: got %d %q", arg, code, out)
		}
	}
}

func TestSubcommandHelp(t *testing.T) {
	tests := [][]string{
		{"serve", "--help"},
		{"sessions", "issue", "--help"},
		{"sessions", "list", "--help"},
		{"sessions", "revoke", "--help"},
		{"history", "--help"},
		{"status", "--help"},
	}
	for _, args := range tests {
		code, _, errOut := runWithArgs(args...)
		if code != 0 {
			t.Errorf("%v: expected exit code 0, got %d", args, code)
		}
		if !strings.Contains(errOut, "Usage: supportdesk") {
			t.Errorf("%v: expected usage on stderr, got %q", args, errOut)
		}
	}
}

func TestMissingIdentityArgument(t *testing.T) {
	for _, args := range [][]string{
		{"sessions", "issue"},
		{"sessions", "revoke"},
		{"history"},
	} {
		code, _, errOut := runWithArgs(args...)
		if code != 1 || !strings.Contains(errOut, "identity is required") {
			t.Errorf("%v: got %d %q", args, code, errOut)
		}
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{45, "45s"},
		{323, "5m 23s"},
		{8100, "2h 15m"},
		{273600, "3d 4h"},
	}
	for _, tt := range tests {
		if got := formatUptime(tt.seconds); got != tt.want {
			t.Errorf("formatUptime(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}
