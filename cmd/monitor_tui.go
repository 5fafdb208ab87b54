// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/Thermoquad/sblflash/pkg/sbl"
)

// Error log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info
}

// monitorStats counts traffic seen on the line
type monitorStats struct {
	frames    uint64
	requests  uint64
	replies   uint64
	fcsErrors uint64
	failures  uint64 // replies with a non-success status
	skipped   int
	start     time.Time
}

// monitorModel is the bubbletea model for the monitor command
type monitorModel struct {
	connInfo      string
	stats         monitorStats
	eventLog      []eventLogEntry
	maxLogEntries int
	showAll       bool
	width         int
	height        int
	quitting      bool
	closed        bool
}

// Messages
type monitorTickMsg time.Time
type frameMsg struct {
	frame   *sbl.Frame
	err     error
	skipped int
}
type connClosedMsg struct {
	err error
}

func newMonitorModel(connInfo string, showAll bool) monitorModel {
	return monitorModel{
		connInfo:      connInfo,
		stats:         monitorStats{start: time.Now()},
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		showAll:       showAll,
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		monitorTickCmd(),
		tea.EnterAltScreen,
	)
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case monitorTickMsg:
		return m, monitorTickCmd()

	case connClosedMsg:
		m.closed = true
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Connection lost: %v", msg.err), true)
		} else {
			m.addLogEntry("Connection closed", false)
		}

	case frameMsg:
		m.stats.skipped = msg.skipped
		if msg.err != nil {
			m.stats.fcsErrors++
			m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", msg.err), true)
			break
		}
		m.recordFrame(msg.frame)
	}

	return m, nil
}

func (m *monitorModel) recordFrame(f *sbl.Frame) {
	m.stats.frames++
	name := sbl.FormatCommand(f.Cmd2)

	if !f.IsResponse() {
		m.stats.requests++
		if m.showAll {
			m.addLogEntry(fmt.Sprintf("-> %s (%d bytes)", name, len(f.Payload)), false)
		}
		return
	}

	m.stats.replies++
	status, ok := f.Response().Status()
	switch {
	case !ok:
		m.stats.failures++
		m.addLogEntry(fmt.Sprintf("<- %s without status", name), true)
	case status != sbl.StatusSuccess:
		m.stats.failures++
		m.addLogEntry(fmt.Sprintf("<- %s %s", name, status), true)
	case m.showAll:
		m.addLogEntry(fmt.Sprintf("<- %s %s", name, status), false)
	}
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

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

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("SBLFLASH - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Press 'q' to quit", m.connInfo)))
	s.WriteString("\n\n")

	elapsed := time.Since(m.stats.start).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = float64(m.stats.frames) / elapsed
	}

	var stats strings.Builder
	stats.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Frames:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.frames)),
		labelStyle.Render("Requests:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.requests)),
		labelStyle.Render("Replies:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.replies)),
	))

	errCount := func(n uint64) string {
		if n > 0 {
			return errorStyle.Render(fmt.Sprintf("%d", n))
		}
		return valueStyle.Render("0")
	}
	stats.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("FCS Errors:"), errCount(m.stats.fcsErrors),
		labelStyle.Render("Failed Replies:"), errCount(m.stats.failures),
		labelStyle.Render("Skipped:"), headerStyle.Render(fmt.Sprintf("%d bytes", m.stats.skipped)),
	))
	stats.WriteString(fmt.Sprintf("%s %s",
		labelStyle.Render("Frame Rate:"), valueStyle.Render(fmt.Sprintf("%.1f frames/s", rate)),
	))

	s.WriteString(boxStyle.Render(stats.String()))
	s.WriteString("\n\n")

	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Reserve space for header and stats
	logHeight := max(m.height-12, 5)
	startIdx := max(len(m.eventLog)-logHeight, 0)

	var events strings.Builder
	if len(m.eventLog) == 0 {
		events.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for _, entry := range m.eventLog[startIdx:] {
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				events.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), errorStyle.Render("✗ "+entry.message)))
			} else {
				events.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), infoStyle.Render("ℹ "+entry.message)))
			}
		}
	}

	s.WriteString(boxStyle.Width(max(m.width-4, 20)).Render(events.String()))

	return s.String()
}

// runMonitorTUI decodes conn in the background and feeds the UI
func runMonitorTUI(conn io.ReadCloser, connInfo string) error {
	p := tea.NewProgram(newMonitorModel(connInfo, monitorShowAll))

	go func() {
		decoder := sbl.NewDecoder()
		buf := make([]byte, 128)
		for {
			n, err := conn.Read(buf)
			if errors.Is(err, ErrReadTimeout) {
				continue
			}
			if err != nil {
				if errors.Is(err, ErrConnectionClosed) {
					err = nil
				}
				p.Send(connClosedMsg{err: err})
				return
			}

			for i := 0; i < n; i++ {
				frame, err := decoder.DecodeByte(buf[i])
				if err != nil || frame != nil {
					p.Send(frameMsg{frame: frame, err: err, skipped: decoder.Skipped()})
				}
			}
		}
	}()

	_, err := p.Run()
	conn.Close()
	if err != nil {
		return errors.Wrap(err, "TUI error")
	}
	return nil
}
