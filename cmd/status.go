package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/supportdesk/host/internal/config"
	"github.com/supportdesk/host/internal/server"
)

func runStatus(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(stderr)

	addr := fs.String("addr", "", "Host address to query (default: from config, then "+config.DefaultAddr+")")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: supportdesk status [options]\n\nShow the status of a running host.\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	target := *addr
	if target == "" {
		cfg, err := loadConfig("")
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		target = cfg.WithDefaults().Addr
	}

	status, err := queryHostStatus(target)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	writeStatusOutput(stdout, status)
	return 0
}

// queryHostStatus fetches /status from a running host.
func queryHostStatus(addr string) (*server.StatusResponse, error) {
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(fmt.Sprintf("http://%s/status", addr))
	if err != nil {
		return nil, fmt.Errorf("host is not running at %s (or not reachable)", addr)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var status server.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &status, nil
}

func writeStatusOutput(stdout io.Writer, status *server.StatusResponse) {
	active := status.ActiveConversation
	if active == "" {
		active = "(none)"
	}
	unread := "(none)"
	if len(status.UnreadClients) > 0 {
		unread = strings.Join(status.UnreadClients, ", ")
	}

	fmt.Fprintf(stdout, "Host Status\n")
	fmt.Fprintf(stdout, "===========\n")
	fmt.Fprintf(stdout, "Listening:    %s\n", status.ListeningAddress)
	fmt.Fprintf(stdout, "Version:      %s\n", status.Version)
	fmt.Fprintf(stdout, "Operator:     %s\n", status.Operator)
	fmt.Fprintf(stdout, "Clients:      %d connected (%d sockets)\n", status.ConnectedClients, status.OpenConnections)
	fmt.Fprintf(stdout, "Active:       %s\n", active)
	fmt.Fprintf(stdout, "Unread:       %s\n", unread)
	fmt.Fprintf(stdout, "Uptime:       %s\n", formatUptime(status.UptimeSeconds))
}
