package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/pflag"

	"github.com/tuannm99/novamem/sqlclient"
)

const (
	prompt     = "novamem> "
	contPrompt = "     ...> "
)

// statementComplete reports whether buf ends with a ';' outside quotes, so
// the buffered text can be sent.
func statementComplete(buf string) bool {
	inQuote := false
	complete := false
	for _, r := range buf {
		switch {
		case r == '\'':
			inQuote = !inQuote
			complete = false
		case r == ';' && !inQuote:
			complete = true
		case inQuote || r != ' ' && r != '\t' && r != '\n':
			complete = false
		}
	}
	return complete
}

func isMetaCommand(line string) bool {
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, "\\") ||
		line == "quit" || line == "exit"
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".novamem_history"
	}
	return filepath.Join(home, ".novamem_history")
}

const helpText = `meta commands:
  \q | quit | exit       quit
  \history               print history
  \help                  show help

sql:
  end each statement with ';'
  several statements sent together run as one transaction
  AWAIT SELECT ... blocks until a row matches (Ctrl+C to give up)`

func main() {
	var (
		addr       = pflag.String("addr", "127.0.0.1:8866", "server address")
		timeout    = pflag.Duration("timeout", 3*time.Second, "dial timeout")
		rwTimeout  = pflag.Duration("rw-timeout", 0, "per-request timeout (0 = none)")
		histPath   = pflag.String("history", defaultHistoryPath(), "history file path")
		histMax    = pflag.Int("history-max", 2000, "max history lines loaded into memory")
		oneShotSQL = pflag.StringP("command", "c", "", "execute SQL and exit (statements end with ';')")
	)
	pflag.Parse()

	cli, err := sqlclient.Dial(*addr, *timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = cli.Close() }()
	cli.SetRWTimeout(*rwTimeout)

	// one-shot mode
	if strings.TrimSpace(*oneShotSQL) != "" {
		res, err := cli.Exec(*oneShotSQL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(res.Format())
		return
	}

	h := NewHistory(*histPath)
	_ = h.Load(*histMax)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = rl.Close() }()

	// preload history so the up arrow works right away
	for _, line := range h.Last(0) {
		_ = rl.SaveHistory(line)
	}

	var buf strings.Builder
	fmt.Printf("connected to %s\n", *addr)
	fmt.Println("type \\help for help")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			// Ctrl+C clears current buffer
			if buf.Len() > 0 {
				buf.Reset()
				rl.SetPrompt(prompt)
			}
			continue
		}
		if err != nil {
			// EOF
			fmt.Println()
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if buf.Len() == 0 && isMetaCommand(line) {
			switch line {
			case "\\q", "quit", "exit":
				return
			case "\\help":
				fmt.Println(helpText)
			case "\\history":
				for i, s := range h.Last(50) {
					fmt.Printf("%5d  %s\n", i+1, s)
				}
			default:
				fmt.Printf("unknown command: %s\n", line)
			}
			continue
		}

		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(line)
		if !statementComplete(buf.String()) {
			rl.SetPrompt(contPrompt)
			continue
		}

		stmt := strings.TrimSpace(buf.String())
		buf.Reset()
		rl.SetPrompt(prompt)

		_ = h.Append(stmt)
		_ = rl.SaveHistory(compactOneLine(stmt))

		res, err := cli.Exec(stmt)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		fmt.Println(res.Format())
	}
}
