// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
)

// Messages sent from the flash goroutine
type phaseMsg struct {
	name  string
	total int
}
type advanceMsg struct{}
type logMsg struct {
	text string
}
type flashDoneMsg struct {
	err error
}

// tuiProgress forwards job progress to the running program
type tuiProgress struct {
	p *tea.Program
}

func (t *tuiProgress) Phase(name string, total int) {
	t.p.Send(phaseMsg{name: name, total: total})
}

func (t *tuiProgress) Advance() {
	t.p.Send(advanceMsg{})
}

func (t *tuiProgress) Log(msg string) {
	t.p.Send(logMsg{text: msg})
}

type logEntry struct {
	timestamp time.Time
	message   string
}

// flashModel is the bubbletea model for a flashing run
type flashModel struct {
	connInfo  string
	imageSize int

	progress progress.Model
	spinner  spinner.Model

	phase   string
	done    int
	total   int
	log     []logEntry
	started time.Time

	finished bool
	aborted  bool
	err      error
}

func newFlashModel(connInfo string, imageSize int) flashModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))

	return flashModel{
		connInfo:  connInfo,
		imageSize: imageSize,
		progress: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(40),
		),
		spinner: s,
		phase:   "Connecting",
		started: time.Now(),
	}
}

func (m flashModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m flashModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.aborted = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.progress.Width = min(max(msg.Width-20, 10), 60)

	case phaseMsg:
		m.phase = msg.name
		m.total = msg.total
		m.done = 0

	case advanceMsg:
		m.done++

	case logMsg:
		m.log = append(m.log, logEntry{timestamp: time.Now(), message: msg.text})

	case flashDoneMsg:
		m.finished = true
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m flashModel) percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.done) / float64(m.total)
}

func (m flashModel) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	okStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	var s strings.Builder
	s.WriteString(titleStyle.Render("SBLFLASH"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | %d bytes | Press 'q' to abort", m.connInfo, m.imageSize)))
	s.WriteString("\n\n")

	for _, entry := range m.log {
		s.WriteString(headerStyle.Render(entry.timestamp.Format("15:04:05.000")))
		s.WriteString(" ")
		s.WriteString(okStyle.Render("✓ " + entry.message))
		s.WriteString("\n")
	}
	if len(m.log) > 0 {
		s.WriteString("\n")
	}

	switch {
	case m.err != nil:
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s failed: %v", m.phase, m.err)))
	case m.finished:
		s.WriteString(okStyle.Render(fmt.Sprintf("✓ Done in %.1fs", time.Since(m.started).Seconds())))
	case m.aborted:
		s.WriteString(errorStyle.Render("Aborting..."))
	default:
		s.WriteString(fmt.Sprintf("%s %s %s\n",
			m.spinner.View(),
			labelStyle.Render(fmt.Sprintf("%-10s", m.phase)),
			headerStyle.Render(fmt.Sprintf("%d/%d", m.done, m.total)),
		))
		s.WriteString(m.progress.ViewAs(m.percent()))
	}
	s.WriteString("\n")

	return s.String()
}

// runFlashTUI runs job under the progress UI. Quitting the UI closes conn,
// which fails the exchange in flight and ends the job.
func runFlashTUI(job *flashJob, connInfo string, conn io.Closer) error {
	p := tea.NewProgram(newFlashModel(connInfo, len(job.image)))

	result := make(chan error, 1)
	go func() {
		err := job.run(&tuiProgress{p: p})
		result <- err
		p.Send(flashDoneMsg{err: err})
	}()

	final, err := p.Run()
	if err != nil {
		conn.Close()
		<-result
		return errors.Wrap(err, "TUI error")
	}

	if m, ok := final.(flashModel); ok && m.aborted && !m.finished {
		conn.Close()
		if jobErr := <-result; jobErr != nil {
			return errors.Wrap(errAborted, jobErr.Error())
		}
		return errAborted
	}

	return <-result
}
