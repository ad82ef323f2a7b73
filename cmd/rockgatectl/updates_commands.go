package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// UpdatesCommands streams the server's change feed to the terminal
type UpdatesCommands struct {
	cli *CLI
}

// NewUpdatesCommands creates a new updates command handler
func NewUpdatesCommands(cli *CLI) *UpdatesCommands {
	return &UpdatesCommands{cli: cli}
}

// UpdateRowMessage is one change row as received on the wire
type UpdateRowMessage struct {
	Type     string `json:"type"`
	Key      string `json:"key,omitempty"`
	Value    string `json:"value,omitempty"`
	Sequence uint64 `json:"sequence"`
}

// UpdateBatchMessage is one feed batch as received on the wire
type UpdateBatchMessage struct {
	Rows     []UpdateRowMessage `json:"rows"`
	Sequence uint64             `json:"sequence"`
	Count    int                `json:"count"`
	Error    string             `json:"error,omitempty"`
}

// Handle connects to the updates endpoint and prints batches until interrupted
func (u *UpdatesCommands) Handle(args []string) {
	if len(args) > 0 && (args[0] == "-h" || args[0] == "--help") {
		u.cli.Println("Usage: rockgatectl updates [options]")
		u.cli.Println()
		u.cli.Println("Stream committed changes as they happen.")
		u.cli.Println()
		u.cli.Println("Options:")
		u.cli.Println("  --since <seq>   Replay changes after this sequence (0 = from the start)")
		u.cli.Println("  --server <url>  Rockgate server URL (default: http://localhost:8988)")
		return
	}

	fs := flag.NewFlagSet("updates", flag.ContinueOnError)
	fs.SetOutput(u.cli.Error)
	since := fs.Uint64("since", 0, "Replay changes after this sequence")
	sinceSet := false
	serverURL := fs.String("server", defaultServerURL, "Rockgate server URL")

	err := fs.Parse(args)
	u.cli.HandleError(err, "parsing flags")
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "since" {
			sinceSet = true
		}
	})
	u.cli.ValidateExactArgs(fs.Args(), 0, "Usage: rockgatectl updates [options]")

	wsURL, err := buildUpdatesURL(*serverURL, *since, sinceSet)
	u.cli.HandleError(err, "building WebSocket URL")

	u.cli.Println("Streaming updates...")
	u.cli.Println("Press Ctrl+C to stop")
	u.cli.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		u.cli.Println("\nStopping...")
		cancel()
	}()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.Dial(wsURL, nil)
	u.cli.HandleError(err, "connecting to WebSocket")
	defer func() {
		if err := conn.Close(); err != nil {
			u.cli.Errorf("Error closing WebSocket: %v\n", err)
		}
	}()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var batch UpdateBatchMessage
		if err := conn.ReadJSON(&batch); err != nil {
			if ctx.Err() != nil {
				return
			}
			u.cli.Errorf("Error reading batch: %v\n", err)
			return
		}

		if batch.Error != "" {
			u.cli.Errorf("Server error: %s\n", batch.Error)
			return
		}

		u.printBatch(&batch)
	}
}

func (u *UpdatesCommands) printBatch(batch *UpdateBatchMessage) {
	for _, row := range batch.Rows {
		switch row.Type {
		case "put":
			u.cli.Printf("[%d] PUT %s = %s\n", row.Sequence, row.Key, row.Value)
		case "delete":
			u.cli.Printf("[%d] DELETE %s\n", row.Sequence, row.Key)
		default:
			u.cli.Printf("[%d] %s %s\n", row.Sequence, row.Type, row.Key)
		}
	}
}

func buildUpdatesURL(serverURL string, since uint64, sinceSet bool) (string, error) {
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}

	scheme := "ws"
	if parsed.Scheme == "https" {
		scheme = "wss"
	}

	parsed.Scheme = scheme
	parsed.Path = "/updates"
	parsed.Fragment = ""

	q := url.Values{}
	if sinceSet {
		q.Set("since", fmt.Sprintf("%d", since))
	}
	parsed.RawQuery = q.Encode()

	return parsed.String(), nil
}
