// Package cli provides a plain line-oriented REPL over the kernel's text
// command interface, with slash meta-commands for saving and inspection.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nathoo/qicore/engine"
	"github.com/nathoo/qicore/types"
)

// CLI handles terminal interaction with one session.
type CLI struct {
	Kernel    *engine.Kernel
	SessionID string
	In        io.Reader
	Out       io.Writer
	SaveDir   string
	Trace     bool
	EchoInput bool   // echo each input line after the prompt (for script playback)
	lastCmd   string // for "again"/"g" repeat
}

// New creates a CLI for a session the kernel has already loaded.
func New(k *engine.Kernel, sessionID string) *CLI {
	home, _ := os.UserHomeDir()
	return &CLI{
		Kernel:    k,
		SessionID: sessionID,
		In:        os.Stdin,
		Out:       os.Stdout,
		SaveDir:   filepath.Join(home, ".qicore", "saves"),
	}
}

// Run shows the world title and the surroundings, then loops:
// prompt → input → command → output, until EOF, /quit or ctx is done.
func (c *CLI) Run(ctx context.Context) {
	if w := c.Kernel.Defs.World; w.Title != "" {
		c.printLine(w.Title)
		c.printLine("")
	}
	c.printResult(c.Kernel.Command(ctx, c.SessionID, "look"))

	scanner := bufio.NewScanner(c.In)
	for ctx.Err() == nil {
		c.print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" || strings.HasPrefix(input, "#") {
			continue
		}
		if c.EchoInput {
			c.printLine(input)
		}

		if strings.HasPrefix(input, "/") {
			if c.handleMeta(ctx, input) {
				return
			}
			continue
		}

		lower := strings.ToLower(input)
		if lower == "again" || lower == "g" {
			if c.lastCmd == "" {
				c.printLine("Nothing to repeat.")
				continue
			}
			input = c.lastCmd
		} else {
			c.lastCmd = input
		}

		result := c.Kernel.Command(ctx, c.SessionID, input)
		c.printResult(result)
		if c.Trace {
			c.printTrace(result)
		}
	}
}

// handleMeta dispatches meta-commands. Returns true if the loop should exit.
func (c *CLI) handleMeta(ctx context.Context, input string) bool {
	parts := strings.Fields(input)
	cmd := parts[0]
	var arg string
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch cmd {
	case "/quit", "/exit":
		c.printSystem("Goodbye.")
		return true
	case "/save", "/export":
		c.cmdSave(arg)
	case "/load":
		c.cmdLoad(ctx, arg)
	case "/history":
		c.cmdHistory()
	case "/state":
		c.cmdState()
	case "/flush":
		if err := c.Kernel.Flush(ctx); err != nil {
			c.printSystem(fmt.Sprintf("Flush failed: %v", err))
		} else {
			c.printSystem("Flushed.")
		}
	case "/trace":
		c.Trace = !c.Trace
		if c.Trace {
			c.printSystem("Trace output enabled.")
		} else {
			c.printSystem("Trace output disabled.")
		}
	case "/help":
		c.cmdHelp()
	default:
		c.printSystem(fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd))
	}
	return false
}

func (c *CLI) cmdSave(name string) {
	if name == "" {
		name = "quicksave"
	}
	data, err := c.Kernel.Export(c.SessionID)
	if err != nil {
		c.printSystem(fmt.Sprintf("Save failed: %v", err))
		return
	}
	if err := os.MkdirAll(c.SaveDir, 0o755); err != nil {
		c.printSystem(fmt.Sprintf("Save failed: %v", err))
		return
	}
	if err := os.WriteFile(filepath.Join(c.SaveDir, name+".json"), data, 0o644); err != nil {
		c.printSystem(fmt.Sprintf("Save failed: %v", err))
		return
	}
	c.printSystem(fmt.Sprintf("Game saved to %s.", name))
}

// cmdLoad replaces the current session with a snapshot. The current
// session is flushed and unloaded first.
func (c *CLI) cmdLoad(ctx context.Context, name string) {
	if name == "" {
		name = "quicksave"
	}
	data, err := os.ReadFile(filepath.Join(c.SaveDir, name+".json"))
	if err != nil {
		c.printSystem(fmt.Sprintf("Load failed: %v", err))
		return
	}
	if err := c.Kernel.Unload(ctx, c.SessionID); err != nil {
		c.printSystem(fmt.Sprintf("Load failed: %v", err))
		return
	}
	id, err := c.Kernel.Restore(ctx, data)
	if err != nil {
		c.printSystem(fmt.Sprintf("Load failed: %v", err))
		id = c.SessionID
	}
	if _, err := c.Kernel.Load(ctx, id); err != nil {
		c.printSystem(fmt.Sprintf("Load failed: %v", err))
		return
	}
	c.SessionID = id
	c.printSystem(fmt.Sprintf("Game loaded from %s.", name))
	c.printResult(c.Kernel.Command(ctx, c.SessionID, "look"))
}

func (c *CLI) cmdHistory() {
	cmds := c.Kernel.CommandLog(c.SessionID)
	if len(cmds) == 0 {
		c.printSystem("No commands yet.")
	}
	for i, cmd := range cmds {
		c.printLine(fmt.Sprintf("%3d  %s", i+1, cmd))
	}
	for _, turn := range c.Kernel.History(c.SessionID) {
		c.printLine(fmt.Sprintf("  ~ %s: %s", turn.Prompt, turn.Content))
	}
}

func (c *CLI) cmdState() {
	s, err := c.Kernel.State(c.SessionID)
	if err != nil {
		c.printSystem(err.Error())
		return
	}
	ch := s.Character
	c.printSystem(fmt.Sprintf("Session: %s", s.SessionID))
	c.printSystem(fmt.Sprintf("Location: %s", ch.LocationID))
	c.printSystem(fmt.Sprintf("Time: %d minutes", s.Time.TotalMinutes))
	c.printSystem(fmt.Sprintf("Qi: %.1f/%.1f (accumulated %.1f)", ch.CurrentQi, ch.CoreCapacity, ch.AccumulatedQi))
	c.printSystem(fmt.Sprintf("Fatigue: %.1f physical, %.1f mental", ch.Fatigue, ch.MentalFatigue))
	c.printSystem(fmt.Sprintf("Inventory: %v", s.Inventory))
}

func (c *CLI) cmdHelp() {
	help := []string{
		"System:",
		"  /save [name]   Save game (default: quicksave)",
		"  /export [name] Same as /save",
		"  /load [name]   Load game (default: quicksave)",
		"  /history       Show the commands and story so far",
		"  /state         Debug: dump current state",
		"  /flush         Write dirty sessions to storage",
		"  /trace         Toggle debug trace output",
		"  /quit          Exit game",
		"",
		engine.HelpText,
		"  again (g)                 repeat your last command",
	}
	for _, line := range help {
		c.printLine(line)
	}
}

func (c *CLI) printTrace(result types.EventResult) {
	if result.Changes != nil {
		data, _ := json.Marshal(result.Changes)
		c.printSystem(fmt.Sprintf("[trace] Changes: %s", data))
	}
	if len(result.Commands) > 0 {
		c.printSystem(fmt.Sprintf("[trace] Commands: %d", len(result.Commands)))
		for _, cmd := range result.Commands {
			c.printSystem(fmt.Sprintf("[trace]   %s %v", cmd.Type, cmd.Data))
		}
	}
}

func (c *CLI) printResult(result types.EventResult) {
	if result.Error != nil {
		c.printLine(result.Error.Message)
		return
	}
	if result.Message != "" {
		c.printLine(result.Message)
	}
}

func (c *CLI) printLine(text string) {
	fmt.Fprintln(c.Out, text)
}

func (c *CLI) print(text string) {
	fmt.Fprint(c.Out, text)
}

func (c *CLI) printSystem(text string) {
	fmt.Fprintf(c.Out, "[%s]\n", text)
}
