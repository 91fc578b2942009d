// Package ui is the terminal editor for one proposal. It feeds every edit to
// the autosave controller and renders the controller's state as a single
// status line.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"proposaldesk/internal/autosave"
	"proposaldesk/internal/proposal"
)

const defaultTick = 200 * time.Millisecond

// Autosaver is the part of autosave.Controller the editor drives.
type Autosaver interface {
	Change(proposal.Content)
	Save()
	State() autosave.State
	Resolve(current proposal.Content) (proposal.Content, bool)
}

// Versions is the version tracker the autosave controller saves through.
type Versions interface {
	Version() int
	Adopt(version int)
	Refresh(ctx context.Context) (proposal.Content, error)
}

type Transitioner interface {
	TransitionProposal(ctx context.Context, current proposal.Proposal, to proposal.Status, note string) (proposal.Proposal, proposal.HistoryEntry, error)
}

// Network lets the user hold the connection offline.
type Network interface {
	ForceOffline(on bool)
	Forced() bool
}

type Options struct {
	Context     context.Context
	Proposal    proposal.Proposal
	Autosave    Autosaver
	Tracker     Versions
	Transitions Transitioner
	// Network is optional.
	Network Network
	Tick    time.Duration
	// Initial overrides the proposal content, for example with a draft
	// restored from the offline backup.
	Initial *proposal.Content
}

type field int

const (
	fieldBody field = iota
	fieldTitle
)

type tickMsg time.Time

type refreshedMsg struct {
	content proposal.Content
	err     error
}

type transitionedMsg struct {
	proposal proposal.Proposal
	err      error
}

type Model struct {
	ctx         context.Context
	proposal    proposal.Proposal
	autosave    Autosaver
	tracker     Versions
	transitions Transitioner
	network     Network
	tick        time.Duration

	keys   keyMap
	styles Styles
	title  textinput.Model
	body   textarea.Model
	focus  field
	width  int

	state    autosave.State
	rejected *proposal.Content
	flash    string
	choosing bool
	choices  []proposal.Status
}

func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	tick := opts.Tick
	if tick <= 0 {
		tick = defaultTick
	}

	content := opts.Proposal.Body()
	if opts.Initial != nil {
		content = *opts.Initial
	}

	title := textinput.New()
	title.Placeholder = "Proposal title"
	title.Prompt = ""
	title.SetValue(content.Title)

	body := textarea.New()
	body.Placeholder = "Write the proposal..."
	body.ShowLineNumbers = false
	body.CharLimit = 0
	body.MaxHeight = 0
	body.SetValue(content.Content)
	body.Focus()

	m := Model{
		ctx:         ctx,
		proposal:    opts.Proposal,
		autosave:    opts.Autosave,
		tracker:     opts.Tracker,
		transitions: opts.Transitions,
		network:     opts.Network,
		tick:        tick,
		keys:        defaultKeyMap(),
		styles:      defaultStyles(),
		title:       title,
		body:        body,
		focus:       fieldBody,
	}
	if opts.Autosave != nil {
		m.state = opts.Autosave.State()
	}
	return m
}

// Run blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	if opts.Autosave == nil || opts.Tracker == nil {
		return errors.New("ui requires an autosave controller and a tracker")
	}
	if opts.Context == nil {
		opts.Context = ctx
	}
	_, err := tea.NewProgram(New(opts), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, tickCmd(m.tick))
}

func (m Model) content() proposal.Content {
	return proposal.Content{Title: m.title.Value(), Content: m.body.Value()}
}

func (m *Model) setContent(c proposal.Content) {
	m.title.SetValue(c.Title)
	m.body.SetValue(c.Content)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.title.Width = max(msg.Width-4, 10)
		m.body.SetWidth(max(msg.Width-2, 10))
		m.body.SetHeight(max(msg.Height-8, 3))
		return m, nil

	case tickMsg:
		m.state = m.autosave.State()
		return m, tickCmd(m.tick)

	case refreshedMsg:
		return m.handleRefreshed(msg), nil

	case transitionedMsg:
		return m.handleTransitioned(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m.forward(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.choosing {
		return m.handleChoice(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Save):
		m.autosave.Save()
		m.flash = ""
		return m, nil

	case key.Matches(msg, m.keys.Reload):
		m.flash = "Reloading..."
		return m, refreshCmd(m.ctx, m.tracker)

	case key.Matches(msg, m.keys.RestoreMine):
		if m.rejected == nil {
			return m, nil
		}
		m.setContent(*m.rejected)
		m.rejected = nil
		m.autosave.Change(m.content())
		m.flash = "Your draft was reapplied"
		return m, nil

	case key.Matches(msg, m.keys.Offline):
		if m.network == nil {
			return m, nil
		}
		forced := !m.network.Forced()
		m.network.ForceOffline(forced)
		if forced {
			m.flash = "Working offline; edits are kept locally"
		} else {
			m.flash = "Back online"
		}
		m.state = m.autosave.State()
		return m, nil

	case key.Matches(msg, m.keys.Status):
		m.choices = proposal.ValidTransitions(m.proposal.Status)
		if len(m.choices) == 0 {
			m.flash = fmt.Sprintf("%s proposals cannot change status", m.proposal.Status)
			return m, nil
		}
		m.choosing = true
		return m, nil

	case key.Matches(msg, m.keys.SwitchField):
		if m.focus == fieldBody {
			m.focus = fieldTitle
			m.body.Blur()
			return m, m.title.Focus()
		}
		m.focus = fieldBody
		m.title.Blur()
		return m, m.body.Focus()
	}
	return m.forward(msg)
}

func (m Model) handleChoice(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Cancel) {
		m.choosing = false
		return m, nil
	}
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}
	s := msg.String()
	if len(s) != 1 || s[0] < '1' || s[0] > '9' {
		return m, nil
	}
	idx := int(s[0] - '1')
	if idx >= len(m.choices) {
		return m, nil
	}
	m.choosing = false
	to := m.choices[idx]
	current := m.proposal
	current.Version = m.tracker.Version()
	m.flash = fmt.Sprintf("Moving to %s...", to)
	return m, transitionCmd(m.ctx, m.transitions, current, to)
}

// forward hands msg to the focused field and reports an edit to autosave.
func (m Model) forward(msg tea.Msg) (tea.Model, tea.Cmd) {
	before := m.content()
	var cmd tea.Cmd
	if m.focus == fieldTitle {
		m.title, cmd = m.title.Update(msg)
	} else {
		m.body, cmd = m.body.Update(msg)
	}
	if after := m.content(); after != before {
		m.autosave.Change(after)
		m.flash = ""
	}
	return m, cmd
}

func (m Model) handleRefreshed(msg refreshedMsg) Model {
	if msg.err != nil {
		m.flash = "Reload failed: " + msg.err.Error()
		return m
	}
	rejected, ok := m.autosave.Resolve(msg.content)
	m.setContent(msg.content)
	m.state = m.autosave.State()
	if ok && rejected != msg.content {
		m.rejected = &rejected
		m.flash = "Loaded the latest version. " + m.keys.RestoreMine.Help().Key + " reapplies your draft"
		return m
	}
	m.rejected = nil
	m.flash = "Loaded the latest version"
	return m
}

func (m Model) handleTransitioned(msg transitionedMsg) Model {
	if msg.err != nil {
		m.flash = "Status not changed: " + msg.err.Error()
		return m
	}
	m.proposal.Status = msg.proposal.Status
	m.proposal.Version = msg.proposal.Version
	m.tracker.Adopt(msg.proposal.Version)
	m.flash = fmt.Sprintf("Status changed to %s", msg.proposal.Status)
	return m
}

func (m Model) View() string {
	var b strings.Builder

	header := m.styles.Header.Render("Proposal " + m.proposal.ID)
	badge := m.styles.Badge.Render(string(m.proposal.Status))
	b.WriteString(header + " " + badge + "\n\n")

	b.WriteString(m.styles.Label.Render("Title") + "\n")
	b.WriteString(m.title.View() + "\n\n")
	b.WriteString(m.styles.Label.Render("Body") + "\n")
	b.WriteString(m.body.View() + "\n\n")

	b.WriteString(m.statusLine() + "\n")
	if m.choosing {
		b.WriteString(m.choiceLine() + "\n")
	} else if m.flash != "" {
		b.WriteString(m.styles.MutedText.Render(m.flash) + "\n")
	}
	b.WriteString(m.styles.Footer.Render(m.helpLine()))
	return b.String()
}

func (m Model) statusLine() string {
	text := statusText(m.state)
	switch m.state.Status {
	case autosave.StatusSaved:
		return m.styles.SuccessText.Render(text)
	case autosave.StatusOffline:
		return m.styles.WarningText.Render(text)
	case autosave.StatusError:
		return m.styles.DangerText.Render(text)
	default:
		return m.styles.MutedText.Render(text)
	}
}

func (m Model) choiceLine() string {
	parts := make([]string, 0, len(m.choices)+1)
	for i, s := range m.choices {
		parts = append(parts, fmt.Sprintf("%d) %s", i+1, s))
	}
	parts = append(parts, "esc cancel")
	return "Move to: " + strings.Join(parts, "  ")
}

func (m Model) helpLine() string {
	bindings := m.keys.help()
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " • ")
}

// statusText is the one-line description of state shown under the editor.
func statusText(state autosave.State) string {
	var text string
	switch state.Status {
	case autosave.StatusSaving:
		text = "Saving..."
	case autosave.StatusSaved:
		text = "Saved"
		if state.LastSaved != nil {
			text += " at " + state.LastSaved.Local().Format("15:04:05")
		}
	case autosave.StatusOffline, autosave.StatusError:
		text = state.Notice().Message()
		if (state.Kind == autosave.KindValidation || state.Kind == autosave.KindRefused) && state.Err != nil {
			text += ": " + state.Err.Error()
		}
	default:
		text = "Editing"
	}
	if state.Offline && state.Status != autosave.StatusOffline {
		text += " (offline)"
	}
	return text
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func refreshCmd(ctx context.Context, tracker Versions) tea.Cmd {
	return func() tea.Msg {
		content, err := tracker.Refresh(ctx)
		return refreshedMsg{content: content, err: err}
	}
}

func transitionCmd(ctx context.Context, t Transitioner, current proposal.Proposal, to proposal.Status) tea.Cmd {
	return func() tea.Msg {
		updated, _, err := t.TransitionProposal(ctx, current, to, "")
		return transitionedMsg{proposal: updated, err: err}
	}
}
