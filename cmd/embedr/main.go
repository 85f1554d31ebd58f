// Command embedr is an interactive shell over the embedded runtime: a small
// REPL for poking at the bridge without writing a host program.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	log "github.com/sirupsen/logrus"

	"github.com/bachmeil/embedr"
)

const (
	historyFile = ".embedr_history"
	prompt      = "R> "
)

var banner = "embedr shell\nCtrl+C cancels input, Ctrl+D exits. Type :quit to exit."

const helpText = `
Shell commands:
  :quit    Exit the shell
  :prot    Show protection-stack depth and live object count
  :help    This text
`

func red(s string) string  { return "\x1b[31m" + s + "\x1b[0m" }
func blue(s string) string { return "\x1b[94m" + s + "\x1b[0m" }

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return historyFile
	}
	return filepath.Join(home, historyFile)
}

// isAssignment reports whether the top level of line is a `<-` binding, so
// the shell can keep assignments invisible the way the interpreter would.
func isAssignment(line string) bool {
	depth := 0
	inStr := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		if inStr {
			if c == '\\' {
				i++
			} else if c == '"' {
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '(':
			depth++
		case ')':
			depth--
		case '<':
			if depth == 0 && i+1 < len(line) && line[i+1] == '-' {
				return true
			}
		}
	}
	return false
}

func main() {
	log.SetLevel(log.WarnLevel)
	session, _ := embedr.Init(embedr.Config{DebugChecks: true})
	defer embedr.Teardown()
	rt := session.Runtime().(*embedr.MemRuntime)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	if f, err := os.Open(historyPath()); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyPath()); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Println(banner)
	for {
		input, err := line.Prompt(prompt)
		if err == liner.ErrPromptAborted {
			continue
		}
		if err != nil { // io.EOF on Ctrl+D
			fmt.Println()
			return
		}
		trimmed := strings.TrimSpace(input)
		if trimmed == "" {
			continue
		}
		line.AppendHistory(input)

		switch trimmed {
		case ":quit", ":q":
			return
		case ":help", ":h":
			fmt.Print(helpText)
			continue
		case ":prot":
			fmt.Printf("protection slots: %d, live objects: %d\n",
				rt.ProtectionDepth(), rt.LiveObjects())
			continue
		}

		if isAssignment(trimmed) {
			if err := session.EvaluateQuiet(trimmed); err != nil {
				fmt.Println(red(err.Error()))
			}
			continue
		}
		g, err := session.Evaluate(trimmed)
		if err != nil {
			fmt.Println(red(err.Error()))
			continue
		}
		fmt.Print(blue(strings.TrimRight(renderValue(session, g), "\n")) + "\n")
		if err := g.Release(); err != nil {
			fmt.Println(red(err.Error()))
		}
	}
}

// renderValue captures the runtime's own printer output for the guard.
func renderValue(s *embedr.Session, g *embedr.Guard) string {
	rt := s.Runtime().(*embedr.MemRuntime)
	var b strings.Builder
	old := rt.Out
	rt.Out = &b
	s.Print(g)
	rt.Out = old
	return b.String()
}
