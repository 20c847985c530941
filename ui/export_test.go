package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func TickForTest(t time.Time) tea.Msg { return tickMsg(t) }
