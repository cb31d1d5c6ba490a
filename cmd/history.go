package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/supportdesk/host/internal/chat"
)

func runHistory(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(stderr)

	storePath := fs.String("store", "", "Path to SQLite store (default: ~/.supportdesk/supportdesk.db)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: supportdesk history [options] <identity>\n\nPrint every logged message sent or received by identity, oldest first.\n\nOptions:\n")
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
		fmt.Fprintf(stdout, "No messages for %s.\n", identity)
		return 0
	}

	store, err := openStore(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer store.Close()

	msgs, err := store.QueryMessages(identity)
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to query messages: %v\n", err)
		return 1
	}
	if len(msgs) == 0 {
		fmt.Fprintf(stdout, "No messages for %s.\n", identity)
		return 0
	}

	writeHistory(stdout, msgs)
	return 0
}

func writeHistory(w io.Writer, msgs []chat.Message) {
	table := newTable(w, "ID", "Time", "From", "To", "Kind", "Body")
	for _, m := range msgs {
		table.Append([]string{
			strconv.FormatInt(m.ID, 10),
			m.Timestamp.Local().Format("2006-01-02 15:04:05"),
			m.Sender,
			m.Receiver,
			string(m.Kind),
			m.Body,
		})
	}
	table.Render()
}
