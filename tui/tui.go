package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nathoo/qicore/engine"
	"github.com/nathoo/qicore/types"
)

// rawLine stores an unstyled output line with its classification,
// so we can re-wrap and re-style when the terminal is resized.
type rawLine struct {
	text     string
	kind     lineKind
	isInput  bool // true for echoed player input
	isSystem bool // true for system messages
}

// Model is the Bubble Tea model for one session.
type Model struct {
	ctx       context.Context
	kernel    *engine.Kernel
	sessionID string

	viewport viewport.Model
	input    textinput.Model
	history  *History

	rawLines []rawLine // accumulated narrative lines (unstyled, for re-wrapping)

	width    int
	height   int
	ready    bool
	trace    bool
	quitting bool
	lastCmd  string
	saveDir  string
}

// gameOutputMsg carries output into the Update loop.
type gameOutputMsg struct {
	input    string   // echoed player input (empty for the opening view)
	lines    []string // output lines
	isSystem bool     // true for meta-command output
	isError  bool     // true for rejected commands
}

// New creates a TUI model for a session the kernel has already loaded.
func New(ctx context.Context, k *engine.Kernel, sessionID string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Focus()
	ti.CharLimit = 256
	ti.PromptStyle = styleInputPrompt

	home, _ := os.UserHomeDir()
	return Model{
		ctx:       ctx,
		kernel:    k,
		sessionID: sessionID,
		input:     ti,
		history:   NewHistory(100, k.CommandLog(sessionID)...),
		saveDir:   filepath.Join(home, ".qicore", "saves"),
	}
}

// Run starts the Bubble Tea program and blocks until the player quits or
// ctx is cancelled.
func Run(ctx context.Context, k *engine.Kernel, sessionID string) error {
	m := New(ctx, k, sessionID)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// Init returns the initial command that produces the title and first look.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.initialOutput())
}

func (m Model) initialOutput() tea.Cmd {
	return func() tea.Msg {
		var lines []string
		if w := m.kernel.Defs.World; w.Title != "" {
			title := w.Title
			if w.Version != "" {
				title += " v" + w.Version
			}
			if w.Author != "" {
				title += " by " + w.Author
			}
			lines = append(lines, title, "")
		}
		result := m.kernel.Command(m.ctx, m.sessionID, "look")
		lines = append(lines, resultLines(result)...)
		return gameOutputMsg{lines: lines, isError: result.Error != nil}
	}
}

// Update handles messages (key presses, window resize, game output).
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		vpHeight := m.height - 2 // 1 status bar + 1 input line
		if vpHeight < 1 {
			vpHeight = 1
		}

		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.KeyMap = viewportKeyMap()
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}

		m.refreshViewport()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "enter":
			return m.handleEnter()

		case "up":
			if prev, ok := m.history.Prev(); ok {
				m.input.SetValue(prev)
				m.input.CursorEnd()
			}
			return m, nil

		case "down":
			if next, ok := m.history.Next(); ok {
				m.input.SetValue(next)
				m.input.CursorEnd()
			} else {
				m.input.SetValue("")
				m.history.ResetCursor()
			}
			return m, nil

		case "pgup", "pgdown":
			var vpCmd tea.Cmd
			m.viewport, vpCmd = m.viewport.Update(msg)
			return m, vpCmd
		}

	case gameOutputMsg:
		m = m.appendOutput(msg)
	}

	var inputCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	cmds = append(cmds, inputCmd)

	return m, tea.Batch(cmds...)
}

// handleEnter processes the submitted input line.
func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")

	if input == "" {
		return m, nil
	}

	m.history.Push(input)
	m.history.ResetCursor()

	lower := strings.ToLower(input)
	if lower == "again" || lower == "g" {
		if m.lastCmd == "" {
			m = m.appendOutput(gameOutputMsg{
				input: input, lines: []string{"Nothing to repeat."}, isSystem: true,
			})
			return m, nil
		}
		input = m.lastCmd
	} else if !strings.HasPrefix(input, "/") {
		m.lastCmd = input
	}

	if strings.HasPrefix(input, "/") {
		output, quit := m.handleMeta(input)
		m = m.appendOutput(gameOutputMsg{input: input, lines: output, isSystem: true})
		if quit {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	result := m.kernel.Command(m.ctx, m.sessionID, input)
	output := resultLines(result)
	if m.trace {
		output = append(output, formatTrace(result)...)
	}
	m = m.appendOutput(gameOutputMsg{input: input, lines: output, isError: result.Error != nil})
	return m, nil
}

// resultLines splits a result's text into display lines.
func resultLines(result types.EventResult) []string {
	text := result.Message
	if result.Error != nil {
		text = result.Error.Message
	}
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// appendOutput adds lines to the narrative and refreshes the viewport.
func (m Model) appendOutput(msg gameOutputMsg) Model {
	if msg.input != "" {
		m.rawLines = append(m.rawLines, rawLine{
			text: "> " + msg.input, isInput: true,
		})
	}

	for _, line := range msg.lines {
		rl := rawLine{text: line, isSystem: msg.isSystem}
		switch {
		case msg.isSystem:
		case msg.isError:
			rl.kind = kindError
		default:
			rl.kind = classifyLine(line)
		}
		m.rawLines = append(m.rawLines, rl)
	}

	// Blank line separator between turns.
	m.rawLines = append(m.rawLines, rawLine{})

	m.refreshViewport()

	return m
}

// refreshViewport re-wraps and re-styles all raw lines at the current width
// and updates the viewport content.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}

	width := m.width
	if width < 10 {
		width = 10
	}

	var styled []string
	for _, rl := range m.rawLines {
		if rl.text == "" {
			styled = append(styled, "")
			continue
		}

		wrapped := wordWrap(rl.text, width)

		switch {
		case rl.isInput:
			styled = append(styled, stylePlayerInput.Render(wrapped))
		case rl.isSystem:
			styled = append(styled, styledSystemMsg(wrapped))
		default:
			styled = append(styled, renderLineKind(wrapped, rl.kind))
		}
	}

	m.viewport.SetContent(strings.Join(styled, "\n"))
	m.viewport.GotoBottom()
}

// wordWrap wraps text to fit within width, breaking at word boundaries.
// Leading indentation is kept on the first line.
func wordWrap(text string, width int) string {
	if width <= 0 || len(text) <= width {
		return text
	}

	indent := text[:len(text)-len(strings.TrimLeft(text, " "))]
	var result strings.Builder
	result.WriteString(indent)
	lineLen := len(indent)

	for i, word := range strings.Fields(text) {
		wLen := len(word)

		if i == 0 {
			result.WriteString(word)
			lineLen += wLen
			continue
		}

		if lineLen+1+wLen > width {
			result.WriteString("\n")
			result.WriteString(word)
			lineLen = wLen
		} else {
			result.WriteString(" ")
			result.WriteString(word)
			lineLen += 1 + wLen
		}
	}

	return result.String()
}

// View renders the full TUI layout: viewport + status bar + input.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	return m.viewport.View() + "\n" + m.renderStatusBar() + "\n" + m.input.View()
}

// handleMeta dispatches meta-commands. Returns output lines and quit flag.
func (m *Model) handleMeta(input string) ([]string, bool) {
	parts := strings.Fields(input)
	cmd := parts[0]
	var arg string
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch cmd {
	case "/quit", "/exit":
		return []string{"Goodbye."}, true

	case "/save", "/export":
		return m.cmdSave(arg), false

	case "/load":
		return m.cmdLoad(arg), false

	case "/history":
		return m.cmdHistory(), false

	case "/help":
		return cmdHelp(), false

	case "/trace":
		m.trace = !m.trace
		if m.trace {
			return []string{"Trace output enabled."}, false
		}
		return []string{"Trace output disabled."}, false

	default:
		return []string{fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd)}, false
	}
}

func (m *Model) cmdSave(name string) []string {
	if name == "" {
		name = "quicksave"
	}

	data, err := m.kernel.Export(m.sessionID)
	if err != nil {
		return []string{fmt.Sprintf("Save failed: %v", err)}
	}

	if err := os.MkdirAll(m.saveDir, 0o755); err != nil {
		return []string{fmt.Sprintf("Save failed: %v", err)}
	}

	path := filepath.Join(m.saveDir, name+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return []string{fmt.Sprintf("Save failed: %v", err)}
	}

	return []string{fmt.Sprintf("Game saved to %s.", name)}
}

func (m *Model) cmdLoad(name string) []string {
	if name == "" {
		name = "quicksave"
	}

	data, err := os.ReadFile(filepath.Join(m.saveDir, name+".json"))
	if err != nil {
		return []string{fmt.Sprintf("Load failed: %v", err)}
	}
	if err := m.kernel.Unload(m.ctx, m.sessionID); err != nil {
		return []string{fmt.Sprintf("Load failed: %v", err)}
	}

	output := []string{}
	id, err := m.kernel.Restore(m.ctx, data)
	if err != nil {
		output = append(output, fmt.Sprintf("Load failed: %v", err))
		id = m.sessionID
	}
	if _, err := m.kernel.Load(m.ctx, id); err != nil {
		return append(output, fmt.Sprintf("Load failed: %v", err))
	}
	m.sessionID = id
	m.history = NewHistory(100, m.kernel.CommandLog(id)...)
	if len(output) == 0 {
		output = append(output, fmt.Sprintf("Game loaded from %s.", name))
	}
	return append(output, resultLines(m.kernel.Command(m.ctx, id, "look"))...)
}

func (m *Model) cmdHistory() []string {
	var out []string
	for i, cmd := range m.kernel.CommandLog(m.sessionID) {
		out = append(out, fmt.Sprintf("%3d  %s", i+1, cmd))
	}
	for _, turn := range m.kernel.History(m.sessionID) {
		out = append(out, fmt.Sprintf("  ~ %s: %s", turn.Prompt, turn.Content))
	}
	if len(out) == 0 {
		return []string{"No commands yet."}
	}
	return out
}

func cmdHelp() []string {
	lines := []string{
		"System:",
		"  /save [name]   Save game (default: quicksave)",
		"  /export [name] Same as /save",
		"  /load [name]   Load game (default: quicksave)",
		"  /history       Show the commands and story so far",
		"  /trace         Toggle debug trace output",
		"  /quit          Exit game",
		"",
	}
	lines = append(lines, strings.Split(engine.HelpText, "\n")...)
	return append(lines,
		"  again (g)                 repeat your last command",
		"",
		"Navigation: PgUp/PgDn to scroll, Up/Down for command history",
	)
}

func formatTrace(result types.EventResult) []string {
	var lines []string
	if result.Error != nil {
		lines = append(lines, fmt.Sprintf("[trace] Error: %s", result.Error.Code))
	}
	if result.Changes != nil {
		data, _ := json.Marshal(result.Changes)
		lines = append(lines, fmt.Sprintf("[trace] Changes: %s", data))
	}
	if len(result.Commands) > 0 {
		lines = append(lines, fmt.Sprintf("[trace] Commands: %d", len(result.Commands)))
		for _, c := range result.Commands {
			lines = append(lines, fmt.Sprintf("[trace]   %s %v", c.Type, c.Data))
		}
	}
	return lines
}

// viewportKeyMap returns a viewport keymap with Up/Down disabled
// (we use those for input history).
func viewportKeyMap() viewport.KeyMap {
	return viewport.KeyMap{
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		Up:           key.NewBinding(key.WithDisabled()),
		Down:         key.NewBinding(key.WithDisabled()),
	}
}
