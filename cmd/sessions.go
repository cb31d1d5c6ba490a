package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/skip2/go-qrcode"

	"github.com/supportdesk/host/internal/auth"
	"github.com/supportdesk/host/internal/chat"
	"github.com/supportdesk/host/internal/config"
)

// newTable returns a borderless, left-aligned table writing to w.
func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func runSessionsIssue(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sessions issue", flag.ContinueOnError)
	fs.SetOutput(stderr)

	storePath := fs.String("store", "", "Path to SQLite store (default: ~/.supportdesk/supportdesk.db)")
	showQR := fs.Bool("qr", false, "Also print the connection details as a QR code")
	hostAddr := fs.String("host", "", "Host address clients dial, used in the QR payload (default: "+config.DefaultAddr+")")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: supportdesk sessions issue [options] <identity>\n\nIssue a token for a client identity. Re-issuing replaces the old token.\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(stderr, "Error: identity is required")
		fs.Usage()
		return 1
	}
	identity := fs.Arg(0)

	path, err := resolveStorePath(*storePath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	store, err := openStore(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer store.Close()

	token, err := auth.NewIssuer(store).Issue(identity)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Issued token for %s\n\n", identity)
	fmt.Fprintf(stdout, "  Identity:   %s\n", identity)
	fmt.Fprintf(stdout, "  Token:      %s\n", token)
	fmt.Fprintf(stdout, "  Auth frame: %s%s%s\n\n", identity, chat.Separator, token)
	fmt.Fprintln(stdout, "The token is shown once; store it now.")

	if *showQR {
		addr := *hostAddr
		if addr == "" {
			addr = config.DefaultAddr
		}
		displayQRCode(stdout, connectPayload(addr, identity, token))
	}
	return 0
}

// connectPayload is the QR content: the WebSocket URL with the auth frame as fragment.
func connectPayload(addr, identity, token string) string {
	return fmt.Sprintf("ws://%s/ws#%s%s%s", addr, identity, chat.Separator, token)
}

func displayQRCode(w io.Writer, payload string) {
	qr, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		fmt.Fprintf(w, "Error generating QR code: %v\n", err)
		return
	}
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "===========================================")
	fmt.Fprintln(w, "         SCAN TO CONNECT")
	fmt.Fprintln(w, "===========================================")
	fmt.Fprintln(w, "")
	// Half-block characters, no quiet-zone border.
	fmt.Fprint(w, qr.ToSmallString(false))
	fmt.Fprintf(w, "  %s\n", payload)
}

func runSessionsList(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sessions list", flag.ContinueOnError)
	fs.SetOutput(stderr)

	storePath := fs.String("store", "", "Path to SQLite store (default: ~/.supportdesk/supportdesk.db)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: supportdesk sessions list [options]\n\nList issued client credentials.\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	path, err := resolveStorePath(*storePath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(stdout, "No credentials issued.")
		return 0
	}

	store, err := openStore(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer store.Close()

	creds, err := store.ListCredentials()
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to list credentials: %v\n", err)
		return 1
	}
	if len(creds) == 0 {
		fmt.Fprintln(stdout, "No credentials issued.")
		return 0
	}

	table := newTable(stdout, "Identity", "Created", "Last seen")
	now := time.Now()
	for _, cred := range creds {
		lastSeen := "never"
		if !cred.LastSeen.IsZero() && cred.LastSeen.After(cred.CreatedAt) {
			lastSeen = formatDuration(now.Sub(cred.LastSeen))
		}
		table.Append([]string{
			cred.Identity,
			formatDuration(now.Sub(cred.CreatedAt)),
			lastSeen,
		})
	}
	table.Render()
	return 0
}

func runSessionsRevoke(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sessions revoke", flag.ContinueOnError)
	fs.SetOutput(stderr)

	storePath := fs.String("store", "", "Path to SQLite store (default: ~/.supportdesk/supportdesk.db)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: supportdesk sessions revoke [options] <identity>\n\nDelete a client's credential. Future handshakes for it fail.\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(stderr, "Error: identity is required")
		fs.Usage()
		return 1
	}
	identity := fs.Arg(0)

	path, err := resolveStorePath(*storePath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintf(stdout, "No credential for %s.\n", identity)
		return 0
	}

	store, err := openStore(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer store.Close()

	if err := auth.NewIssuer(store).Revoke(identity); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Revoked %s.\n", identity)
	return 0
}
