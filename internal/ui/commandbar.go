package ui

import (
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vidyasagar/opdsnav/internal/opds"
	"github.com/vidyasagar/opdsnav/internal/theme"
)

// CommandType identifies the kind of command bar interaction.
type CommandType int

const (
	CommandNone   CommandType = iota
	CommandEx                 // : commands
	CommandSearch             // / catalog search
)

// CommandResult is emitted when a command is submitted. Search is the
// descriptor the bar was opened with, so terms always go to the catalog
// that was on screen when typing began.
type CommandResult struct {
	Type   CommandType
	Value  string
	Search *opds.SearchDescriptor
}

// recall is the up/down history of one input scope.
type recall struct {
	entries []string
	pos     int
}

func (r *recall) add(v string) {
	if n := len(r.entries); n > 0 && r.entries[n-1] == v {
		return
	}
	r.entries = append(r.entries, v)
}

func (r *recall) older() (string, bool) {
	if len(r.entries) == 0 {
		return "", false
	}
	if r.pos < len(r.entries)-1 {
		r.pos++
	}
	return r.entries[len(r.entries)-1-r.pos], true
}

func (r *recall) newer() (string, bool) {
	if r.pos <= 0 {
		r.pos = -1
		return "", false
	}
	r.pos--
	return r.entries[len(r.entries)-1-r.pos], true
}

// CommandBar handles : commands and catalog searches. Commands share one
// history; each catalog search template keeps its own.
type CommandBar struct {
	input    textinput.Model
	active   bool
	cmdType  CommandType
	search   *opds.SearchDescriptor
	width    int
	commands []string
	recalls  map[string]*recall
}

// NewCommandBar creates a command bar that tab-completes the given
// command names.
func NewCommandBar(commands ...string) CommandBar {
	ti := textinput.New()
	ti.CharLimit = 256

	names := append([]string(nil), commands...)
	sort.Strings(names)
	return CommandBar{
		input:    ti,
		commands: names,
		recalls:  make(map[string]*recall),
	}
}

// SetWidth sets the command bar width.
func (c *CommandBar) SetWidth(w int) {
	c.width = w
	c.input.Width = w - 4
}

// OpenCommand activates the bar for a : command.
func (c *CommandBar) OpenCommand() tea.Cmd {
	c.open(CommandEx, nil)
	c.input.Placeholder = "command..."
	c.input.Prompt = ":"
	return c.input.Focus()
}

// OpenSearch activates the bar for terms sent to desc.
func (c *CommandBar) OpenSearch(desc *opds.SearchDescriptor) tea.Cmd {
	c.open(CommandSearch, desc)
	label := desc.ShortName
	if label == "" {
		label = "catalog"
	}
	c.input.Placeholder = "search " + label + "..."
	c.input.Prompt = "/"
	return c.input.Focus()
}

func (c *CommandBar) open(ct CommandType, desc *opds.SearchDescriptor) {
	c.active = true
	c.cmdType = ct
	c.search = desc
	c.input.Reset()
	c.scope().pos = -1
}

// scope returns the history of the current mode.
func (c *CommandBar) scope() *recall {
	key := ":"
	if c.cmdType == CommandSearch && c.search != nil {
		key = "/" + c.search.Template
	}
	r, ok := c.recalls[key]
	if !ok {
		r = &recall{pos: -1}
		c.recalls[key] = r
	}
	return r
}

// Close deactivates the command bar.
func (c *CommandBar) Close() {
	c.active = false
	c.cmdType = CommandNone
	c.search = nil
	c.input.Blur()
	c.input.Reset()
}

// IsActive reports whether the command bar is open.
func (c *CommandBar) IsActive() bool {
	return c.active
}

// SetValue prefills the input.
func (c *CommandBar) SetValue(val string) {
	c.input.SetValue(val)
	c.input.SetCursor(len(val))
}

// Value returns the text typed so far.
func (c *CommandBar) Value() string {
	return c.input.Value()
}

// Type returns the current command type.
func (c *CommandBar) Type() CommandType {
	return c.cmdType
}

// Submit returns the command result, records it in the scope's history
// and closes the bar.
func (c *CommandBar) Submit() CommandResult {
	val := strings.TrimSpace(c.input.Value())
	result := CommandResult{
		Type:   c.cmdType,
		Value:  val,
		Search: c.search,
	}
	if val != "" {
		c.scope().add(val)
	}
	c.Close()
	return result
}

// complete extends the command name being typed to the longest prefix
// shared by the matching commands.
func (c *CommandBar) complete() {
	val := c.input.Value()
	if c.cmdType != CommandEx || strings.Contains(val, " ") {
		return
	}
	var matches []string
	for _, name := range c.commands {
		if strings.HasPrefix(name, val) {
			matches = append(matches, name)
		}
	}
	if len(matches) == 0 {
		return
	}
	prefix := matches[0]
	for _, m := range matches[1:] {
		for !strings.HasPrefix(m, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	if len(matches) == 1 {
		prefix += " "
	}
	c.SetValue(prefix)
}

// Update processes messages for the command bar.
func (c *CommandBar) Update(msg tea.Msg) (*CommandBar, tea.Cmd) {
	if !c.active {
		return c, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.Type {
		case tea.KeyEsc:
			c.Close()
			return c, nil
		case tea.KeyEnter:
			// Handled by the parent to process the result.
			return c, nil
		case tea.KeyTab:
			c.complete()
			return c, nil
		case tea.KeyUp:
			if v, ok := c.scope().older(); ok {
				c.SetValue(v)
			}
			return c, nil
		case tea.KeyDown:
			if v, ok := c.scope().newer(); ok {
				c.SetValue(v)
			} else {
				c.input.Reset()
			}
			return c, nil
		}
	}

	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	return c, cmd
}

// View renders the command bar.
func (c *CommandBar) View() string {
	if !c.active {
		return ""
	}

	t := theme.Current

	barStyle := lipgloss.NewStyle().
		Foreground(t.Text).
		Background(t.Surface).
		Width(c.width)

	return barStyle.Render(c.input.View())
}
