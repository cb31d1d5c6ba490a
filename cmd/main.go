package main

import (
	"fmt"
	"io"
	"os"
)

// Version is set at build time via -ldflags.
// Example: go build -ldflags="-X main.Version=v0.3.0" ./cmd
var Version = "dev"

const usage = `supportdesk - live support chat host

Usage:
  supportdesk <command> [options]

Commands:
  serve                       Run the host (client WebSocket + operator console)
  sessions issue <identity>   Issue a client token
  sessions list               List issued credentials
  sessions revoke <identity>  Revoke a client token
  history <identity>          Print the message log for an identity
  status                      Show status of a running host
  version                     Print the version
Run 'supportdesk <command> --help' for more information on a command.
`

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		fmt.Fprint(stdout, usage)
		return 0
	}

	switch args[1] {
	case "serve":
		return runServe(args[2:], stdout, stderr)
	case "sessions":
		if len(args) < 3 {
			fmt.Fprintln(stdout, "Usage: supportdesk sessions <issue|list|revoke>")
			return 1
		}
		switch args[2] {
		case "issue":
			return runSessionsIssue(args[3:], stdout, stderr)
		case "list":
			return runSessionsList(args[3:], stdout, stderr)
		case "revoke":
			return runSessionsRevoke(args[3:], stdout, stderr)
		default:
			fmt.Fprintf(stdout, "Unknown sessions command: %s\n", args[2])
			return 1
		}
	case "history":
		return runHistory(args[2:], stdout, stderr)
	case "status":
		return runStatus(args[2:], stdout, stderr)
	case "--help", "-h", "help":
		fmt.Fprint(stdout, usage)
		return 0
	case "--version", "-v", "version":
		fmt.Fprintf(stdout, "supportdesk %s\n", Version)
		return 0
	default:
		fmt.Fprintf(stdout, "Unknown command: %s\n", args[1])
		fmt.Fprint(stdout, usage)
		return 1
	}
}
