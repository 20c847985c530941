// Package ui is a read-only terminal status monitor for a running scaler.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"rgbiscaler/scaler"
)

// Status is what the monitor shows.
type Status struct {
	Mode     string
	Standard string
	Source   string
	Sink     string
	Stats    scaler.Stats
}

// StatusFunc samples the current status.
type StatusFunc func() Status

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	onStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	offStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type tickMsg time.Time

// Model is the bubbletea model of the monitor.
type Model struct {
	poll     StatusFunc
	interval time.Duration

	status Status
	frames uint32
	signal bool
	rate   float64
}

// New creates a monitor polling every interval.
func New(poll StatusFunc, interval time.Duration) Model {
	return Model{poll: poll, interval: interval}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		st := m.poll()
		n := st.Stats.Decoder.Frames
		// the input LED is lit while the frame counter moves
		m.signal = n != m.frames
		m.rate = float64(n-m.frames) / m.interval.Seconds()
		m.frames = n
		m.status = st
		return m, m.tick()
	}
	return m, nil
}

// Signal reports whether frames arrived during the last interval.
func (m Model) Signal() bool {
	return m.signal
}

func (m Model) View() string {
	st := m.status
	d := st.Stats.Decoder

	led := offStyle.Render("● NO SIGNAL")
	if m.signal {
		led = onStyle.Render(fmt.Sprintf("● %.1f fps", m.rate))
	}

	var b strings.Builder
	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(value)
		b.WriteByte('\n')
	}
	row("Input", led)
	row("Decoder", st.Stats.DecoderState.String())
	row("Frames", fmt.Sprint(d.Frames))
	row("Lines", fmt.Sprint(d.Lines))
	row("Sync pulses", fmt.Sprintf("%d (%d noise)", d.SyncPulses, d.NoisePulses))
	row("Output", fmt.Sprintf("%s %s", st.Mode, st.Standard))
	row("Route", fmt.Sprintf("%s -> %s", st.Source, st.Sink))
	row("Published", fmt.Sprintf("%d (%d dropped)", st.Stats.Pool.Published, st.Stats.Pool.Dropped))
	row("Batches", fmt.Sprint(st.Stats.CaptureBatches))
	row("Out lines", fmt.Sprint(st.Stats.OutputLines))
	if err := st.Stats.CaptureErr; err != nil {
		row("Capture", errStyle.Render(err.Error()))
	}
	if err := st.Stats.OutputErr; err != nil {
		row("Output err", errStyle.Render(err.Error()))
	}

	return titleStyle.Render("rgbiscaler") + "\n" +
		boxStyle.Render(strings.TrimSuffix(b.String(), "\n")) + "\n" +
		helpStyle.Render("q: quit") + "\n"
}

// Run shows the monitor until the user quits or ctx is done.
func Run(ctx context.Context, poll StatusFunc) error {
	p := tea.NewProgram(New(poll, 250*time.Millisecond), tea.WithContext(ctx))
	_, err := p.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
