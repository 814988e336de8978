// Command chatmon is an operator client: it logs into a chat server,
// lists its rooms, renders a joined room's live feed in a terminal UI,
// and sends the chat lines the operator types. It speaks the exact wire protocol implemented by
// internal/protocol and internal/session, as an ordinary client — it
// carries none of the server's own state.
package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/stlalpha/chatroomd/internal/chatmon"
)

func main() {
	addr := flag.String("addr", "localhost:6667", "chat server host:port")
	username := flag.String("user", "", "account username")
	password := flag.String("pass", "", "account password")
	insecure := flag.Bool("insecure", false, "skip TLS certificate verification (self-signed server.crt)")
	flag.Parse()

	if *username == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "chatmon: -user and -pass are required")
		os.Exit(1)
	}

	if err := run(*addr, *username, *password, *insecure); err != nil {
		fmt.Fprintf(os.Stderr, "chatmon: %v\n", err)
		os.Exit(1)
	}
}

func run(addr, username, password string, insecure bool) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{
		InsecureSkipVerify: insecure, //nolint:gosec // operator tool against a known self-signed server
		MinVersion:         tls.VersionTLS12,
	})
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	client := chatmon.New(conn)
	if err := client.Login(username, password); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	model := chatmon.NewModel(client)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run TUI: %w", err)
	}
	return nil
}
