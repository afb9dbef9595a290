package main

import (
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"asremap/internal/ui"
)

// runWithProgress runs work while a progress view consumes its events. The
// events channel is closed once work returns.
func runWithProgress(out io.Writer, title string, files []string, work func(emit func(ui.Event)) error) error {
	events := make(chan ui.Event, 256)
	workErr := make(chan error, 1)
	go func() {
		err := work(func(ev ui.Event) { events <- ev })
		close(events)
		workErr <- err
	}()

	model := ui.NewProgressModel(title, files, events)
	program := tea.NewProgram(model, tea.WithOutput(out), tea.WithInput(nil))
	_, uiErr := program.Run()
	if uiErr != nil {
		// Drain so that work can finish.
		for range events {
		}
	}
	err := <-workErr
	if uiErr != nil {
		return uiErr
	}
	return err
}
