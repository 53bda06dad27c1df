package app

import (
	"fmt"
	"os"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"bridgetalk/internal/audio"
	"bridgetalk/internal/pipeline"
	"bridgetalk/internal/router"
	"bridgetalk/internal/screen"
	"bridgetalk/internal/screens/chat"
	"bridgetalk/internal/screens/roster"
	"bridgetalk/internal/screens/welcome"
	"bridgetalk/internal/session"
	"bridgetalk/internal/ui/layout"
)

// Options carries the wired services for the TUI.
type Options struct {
	Store      *session.Store
	Translator *pipeline.Translator
	Assist     *pipeline.Assist
	Analyzer   *pipeline.Analyzer
	Audio      *audio.Pipeline
}

// AppModel is the root Bubble Tea model.
type AppModel struct {
	opts   Options
	router *router.Router
	width  int
	height int
}

func newAppModel(opts Options) AppModel {
	rosterFactory := func() screen.Screen {
		return roster.New(opts.Store, opts.Analyzer, func(subjectID string) screen.Screen {
			return chat.New(opts.Store, opts.Translator, opts.Assist, opts.Audio, subjectID)
		})
	}

	var initial screen.Screen
	if opts.Store.FirstRun() {
		initial = welcome.New(opts.Store, rosterFactory)
	} else {
		initial = rosterFactory()
	}

	return AppModel{
		opts:   opts,
		router: router.New(initial),
	}
}

func (m AppModel) Init() tea.Cmd {
	active := m.router.Active()
	if active == nil {
		return nil
	}
	return active.Init()
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.router.Depth() > 1 {
				return m, func() tea.Msg { return router.PopScreenMsg{} }
			}
		}
	}

	cmd := m.router.Update(msg)
	return m, cmd
}

func (m AppModel) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true

	if m.width == 0 || m.height == 0 {
		return v
	}

	if layout.IsTooSmall(m.width, m.height) {
		v.SetContent(layout.RenderMinSizeMessage(m.width, m.height))
		return v
	}

	active := m.router.Active()
	title := ""
	if active != nil {
		title = active.Title()
	}

	sess := m.opts.Store.Current()
	status := string(sess.PreferredVoice) + " voice"
	if sub, ok := sess.Selected(); ok {
		status = sub.Language + " · " + status
	}

	header := layout.RenderHeader(title, status, m.width)

	footerHints := []layout.KeyHint{
		{Key: "Esc", Description: "Back"},
		{Key: "Ctrl+C", Description: "Quit"},
	}
	if provider, ok := active.(screen.KeyHintProvider); ok {
		footerHints = append(provider.KeyHints(), footerHints...)
	}
	footer := layout.RenderFooter(footerHints, m.width)

	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := m.height - headerHeight - footerHeight
	if contentHeight < 0 {
		contentHeight = 0
	}

	content := m.router.View(m.width, contentHeight)
	frame := layout.RenderFrame(header, content, footer, m.width, m.height)

	v.SetContent(frame)
	return v
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	p := tea.NewProgram(newAppModel(opts))
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error running program:", err)
		return err
	}
	return nil
}
