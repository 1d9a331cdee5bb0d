// Package tui renders a diagnostic session in the terminal.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kirillkom/neurovision/internal/core/domain"
	"github.com/kirillkom/neurovision/internal/core/ports"
)

// ImageLoader turns a path typed by the user into a selectable image.
type ImageLoader func(path string) (domain.SelectedImage, error)

type snapshotMsg struct{ snapshot domain.Snapshot }

type selectDoneMsg struct {
	path string
	err  error
}

type submitDoneMsg struct{ accepted bool }

type resetDoneMsg struct{}

type keyMap struct {
	Select key.Binding
	Submit key.Binding
	Reset  key.Binding
	Quit   key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Select: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select file")),
		Submit: key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "submit")),
		Reset:  key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "reset")),
		Quit:   key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("esc", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Select, k.Submit, k.Reset, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// Model is a single-screen view over one session. Intents are issued from
// commands so listener callbacks never run on the update loop.
type Model struct {
	ctx     context.Context
	session ports.DiagnosticSession
	load    ImageLoader

	input    textinput.Model
	spinner  spinner.Model
	keys     keyMap
	help     help.Model
	snapshot domain.Snapshot
	status   string
	width    int
}

func NewModel(ctx context.Context, session ports.DiagnosticSession, load ImageLoader, initialPath string) Model {
	input := textinput.New()
	input.Placeholder = "path to an MRI image (png, jpeg, dicom)"
	input.Prompt = "image › "
	input.CharLimit = 1024
	input.SetValue(initialPath)
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = spinnerStyle

	return Model{
		ctx:      ctx,
		session:  session,
		load:     load,
		input:    input,
		spinner:  spin,
		keys:     defaultKeys(),
		help:     help.New(),
		snapshot: session.Snapshot(),
		status:   "ready",
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick}
	if path := strings.TrimSpace(m.input.Value()); path != "" {
		cmds = append(cmds, m.selectCmd(path))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case snapshotMsg:
		// Listener deliveries may interleave; keep the newest revision.
		if msg.snapshot.Revision >= m.snapshot.Revision {
			m.snapshot = msg.snapshot
		}
		return m, nil

	case selectDoneMsg:
		if msg.err != nil {
			m.status = "could not open " + msg.path + ": " + msg.err.Error()
		} else {
			m.status = "selected " + msg.path
		}
		m.snapshot = latest(m.snapshot, m.session.Snapshot())
		return m, nil

	case submitDoneMsg:
		if !msg.accepted {
			m.status = "nothing to submit"
		} else {
			m.status = "submitted"
		}
		m.snapshot = latest(m.snapshot, m.session.Snapshot())
		return m, nil

	case resetDoneMsg:
		m.status = "reset"
		m.input.SetValue("")
		m.snapshot = latest(m.snapshot, m.session.Snapshot())
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Select):
			path := strings.TrimSpace(m.input.Value())
			if path == "" {
				m.status = "type a file path first"
				return m, nil
			}
			m.status = "loading " + path
			return m, m.selectCmd(path)
		case key.Matches(msg, m.keys.Submit):
			if !m.snapshot.CanSubmit {
				m.status = "select a file before submitting"
				return m, nil
			}
			return m, m.submitCmd()
		case key.Matches(msg, m.keys.Reset):
			if !m.snapshot.CanReset {
				return m, nil
			}
			return m, m.resetCmd()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Neurovision · brain MRI classification"))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(paneStyle.Render(m.sessionView()))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(m.status))
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return appStyle.Render(b.String())
}

func (m Model) sessionView() string {
	snap := m.snapshot
	lines := []string{stateStyle.Render("state: " + string(snap.State))}

	if snap.Filename != "" {
		file := "file: " + snap.Filename
		if snap.ContentType != "" {
			file += " (" + snap.ContentType + ")"
		}
		lines = append(lines, file)
	}
	if snap.HasPreview {
		lines = append(lines, mutedStyle.Render("preview: "+previewLabel(snap.PreviewHandle)))
	}

	switch snap.State {
	case domain.StateIdle:
		lines = append(lines, mutedStyle.Render("no image selected"))
	case domain.StateFileSelected:
		lines = append(lines, mutedStyle.Render("ready to submit"))
	case domain.StateSubmitting:
		lines = append(lines, m.spinner.View()+" analyzing image…")
	case domain.StateSucceeded:
		if snap.Result != nil {
			lines = append(lines, resultStyle.Render(fmt.Sprintf(
				"diagnosis: %s  confidence: %.1f%%",
				snap.Result.TumorClass,
				snap.Result.Confidence*100,
			)))
			if snap.HighConfidence {
				lines = append(lines, bannerStyle.Render("high confidence result"))
			}
			if snap.Result.HasAnnotatedImage() {
				lines = append(lines, mutedStyle.Render("annotated image available"))
			}
		}
	case domain.StateFailed:
		lines = append(lines, errorStyle.Render(snap.ErrorMessage))
	}
	return strings.Join(lines, "\n")
}

func (m Model) selectCmd(path string) tea.Cmd {
	ctx, session, load := m.ctx, m.session, m.load
	return func() tea.Msg {
		image, err := load(path)
		if err != nil {
			return selectDoneMsg{path: path, err: err}
		}
		return selectDoneMsg{path: path, err: session.SelectFile(ctx, image)}
	}
}

func (m Model) submitCmd() tea.Cmd {
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		return submitDoneMsg{accepted: session.Submit(ctx)}
	}
}

func (m Model) resetCmd() tea.Cmd {
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		session.Reset(ctx)
		return resetDoneMsg{}
	}
}

func latest(current, candidate domain.Snapshot) domain.Snapshot {
	if candidate.Revision >= current.Revision {
		return candidate
	}
	return current
}

func previewLabel(uri string) string {
	if strings.HasPrefix(uri, "data:") {
		if i := strings.IndexByte(uri, ','); i > 0 {
			return uri[:i] + ",…"
		}
	}
	return uri
}
