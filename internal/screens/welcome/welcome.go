package welcome

import (
	"context"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/google/uuid"

	"bridgetalk/internal/router"
	"bridgetalk/internal/screen"
	"bridgetalk/internal/session"
	"bridgetalk/internal/ui/components"
	"bridgetalk/internal/ui/layout"
	"bridgetalk/internal/ui/theme"
)

type step int

const (
	stepTeacherName step = iota
	stepVoice
	stepSubjectName
	stepSubjectLanguage
	stepSubjectAge
	stepDone
)

type savedMsg struct {
	err error
}

// WelcomeScreen collects the teacher's name, voice preference, and the
// first subject on first run, then hands off to the roster.
type WelcomeScreen struct {
	store         *session.Store
	rosterFactory func() screen.Screen

	step    step
	input   components.TextInput
	voice   components.Menu
	errMsg  string
	name    string
	mode    session.VoiceMode
	subName string
	subLang string
	subAge  int
}

var _ screen.Screen = (*WelcomeScreen)(nil)
var _ screen.KeyHintProvider = (*WelcomeScreen)(nil)

// New creates the first-run setup screen.
func New(store *session.Store, rosterFactory func() screen.Screen) *WelcomeScreen {
	w := &WelcomeScreen{
		store:         store,
		rosterFactory: rosterFactory,
		input:         components.NewTextInput("Your name", false, 40),
		mode:          session.VoiceRemote,
	}
	w.voice = components.NewMenu([]components.MenuItem{
		{Label: "High-quality synthesized voice (needs an OpenAI key)"},
		{Label: "Built-in system voice"},
	})
	return w
}

func (w *WelcomeScreen) Title() string { return "Welcome" }

func (w *WelcomeScreen) Init() tea.Cmd {
	return w.input.Init()
}

func (w *WelcomeScreen) KeyHints() []layout.KeyHint {
	if w.step == stepVoice {
		return []layout.KeyHint{
			{Key: "↑↓", Description: "Choose"},
			{Key: "Enter", Description: "Confirm"},
		}
	}
	return []layout.KeyHint{
		{Key: "Enter", Description: "Continue"},
	}
}

func (w *WelcomeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case savedMsg:
		if msg.err != nil {
			w.errMsg = msg.err.Error()
			return w, nil
		}
		roster := w.rosterFactory()
		return w, func() tea.Msg { return router.ReplaceScreenMsg{Screen: roster} }

	case tea.KeyMsg:
		if msg.String() == "enter" {
			return w.advance()
		}
	}

	if w.step == stepVoice {
		var cmd tea.Cmd
		w.voice, cmd = w.voice.Update(msg)
		return w, cmd
	}

	var cmd tea.Cmd
	w.input, cmd = w.input.Update(msg)
	return w, cmd
}

func (w *WelcomeScreen) advance() (screen.Screen, tea.Cmd) {
	switch w.step {
	case stepTeacherName:
		name := strings.TrimSpace(w.input.Value())
		if name == "" {
			return w, nil
		}
		w.name = name
		w.step = stepVoice
		return w, nil

	case stepVoice:
		if w.voice.Selected == 0 {
			w.mode = session.VoiceRemote
		} else {
			w.mode = session.VoiceLocal
		}
		w.step = stepSubjectName
		w.input = components.NewTextInput("Student's name", false, 40)
		return w, w.input.Init()

	case stepSubjectName:
		name := strings.TrimSpace(w.input.Value())
		if name == "" {
			return w, nil
		}
		w.subName = name
		w.step = stepSubjectLanguage
		w.input = components.NewTextInput("Student's home language (e.g. Spanish)", false, 40)
		return w, w.input.Init()

	case stepSubjectLanguage:
		lang := strings.TrimSpace(w.input.Value())
		if lang == "" {
			return w, nil
		}
		w.subLang = lang
		w.step = stepSubjectAge
		w.input = components.NewTextInput("Student's age", true, 3)
		return w, w.input.Init()

	case stepSubjectAge:
		age, err := w.input.NumericValue()
		if err != nil || age <= 0 {
			return w, nil
		}
		w.subAge = age
		w.step = stepDone
		return w, w.save()
	}
	return w, nil
}

func (w *WelcomeScreen) save() tea.Cmd {
	return func() tea.Msg {
		_, err := w.store.Mutate(context.Background(), func(s session.Session) session.Session {
			s.TeacherName = w.name
			s.PreferredVoice = w.mode
			return session.AddSubject(s, session.Subject{
				ID:       uuid.New().String(),
				Name:     w.subName,
				Language: w.subLang,
				Age:      w.subAge,
			})
		})
		return savedMsg{err: err}
	}
}

func (w *WelcomeScreen) View(width, height int) string {
	var sections []string

	sections = append(sections,
		theme.Title.Render("BridgeTalk"),
		theme.Subtitle.Render("Say it so they hear it."),
		"")

	if w.errMsg != "" {
		sections = append(sections, lipgloss.NewStyle().Foreground(theme.Error).Render(w.errMsg))
	}

	switch w.step {
	case stepTeacherName:
		sections = append(sections, theme.Body.Render("What should students call you?"), "", w.input.View())
	case stepVoice:
		sections = append(sections, theme.Body.Render("How should messages be spoken aloud?"), "", w.voice.View())
	case stepSubjectName:
		sections = append(sections, theme.Body.Render("Let's add your first student."), "", w.input.View())
	case stepSubjectLanguage:
		sections = append(sections, theme.Body.Render("What language does "+w.subName+" speak at home?"), "", w.input.View())
	case stepSubjectAge:
		sections = append(sections, theme.Body.Render("How old is "+w.subName+"?"), "", w.input.View())
	case stepDone:
		sections = append(sections, theme.Hint.Render("Saving..."))
	}

	content := strings.Join(sections, "\n")
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}
