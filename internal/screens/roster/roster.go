package roster

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/google/uuid"

	"bridgetalk/internal/pipeline"
	"bridgetalk/internal/router"
	"bridgetalk/internal/screen"
	"bridgetalk/internal/session"
	"bridgetalk/internal/ui/components"
	"bridgetalk/internal/ui/layout"
	"bridgetalk/internal/ui/theme"
)

type addStep int

const (
	addName addStep = iota
	addLanguage
	addAge
)

// RosterScreen lists subjects and lets the teacher pick, add, or remove
// one. Picking a subject also gives the background profile analyzer a
// chance to run.
type RosterScreen struct {
	store       *session.Store
	analyzer    *pipeline.Analyzer
	chatFactory func(subjectID string) screen.Screen

	cursor     int
	adding     bool
	addStep    addStep
	input      components.TextInput
	newName    string
	newLang    string
	confirming bool // delete confirmation for the subject under the cursor
	errMsg     string
}

var _ screen.Screen = (*RosterScreen)(nil)
var _ screen.KeyHintProvider = (*RosterScreen)(nil)

// New creates the roster screen.
func New(store *session.Store, analyzer *pipeline.Analyzer, chatFactory func(string) screen.Screen) *RosterScreen {
	return &RosterScreen{
		store:       store,
		analyzer:    analyzer,
		chatFactory: chatFactory,
	}
}

func (r *RosterScreen) Title() string { return "Students" }

func (r *RosterScreen) Init() tea.Cmd { return nil }

func (r *RosterScreen) KeyHints() []layout.KeyHint {
	if r.adding {
		return []layout.KeyHint{
			{Key: "Enter", Description: "Continue"},
			{Key: "Esc", Description: "Cancel"},
		}
	}
	if r.confirming {
		return []layout.KeyHint{
			{Key: "Y", Description: "Remove"},
			{Key: "N", Description: "Keep"},
		}
	}
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Enter", Description: "Open chat"},
		{Key: "A", Description: "Add student"},
		{Key: "D", Description: "Remove"},
	}
}

func (r *RosterScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	kmsg, ok := msg.(tea.KeyMsg)
	if !ok {
		if r.adding {
			var cmd tea.Cmd
			r.input, cmd = r.input.Update(msg)
			return r, cmd
		}
		return r, nil
	}

	if r.adding {
		return r.handleAddKey(kmsg)
	}
	if r.confirming {
		return r.handleConfirmKey(kmsg)
	}
	return r.handleListKey(kmsg)
}

func (r *RosterScreen) handleListKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	subjects := r.store.Current().Subjects

	switch msg.String() {
	case "up", "k":
		if r.cursor > 0 {
			r.cursor--
		}
	case "down", "j":
		if r.cursor < len(subjects)-1 {
			r.cursor++
		}
	case "a":
		r.adding = true
		r.addStep = addName
		r.input = components.NewTextInput("Student's name", false, 40)
		return r, r.input.Init()
	case "d":
		if len(subjects) > 0 {
			r.confirming = true
		}
	case "enter":
		if r.cursor < len(subjects) {
			return r.openChat(subjects[r.cursor].ID)
		}
	}
	return r, nil
}

func (r *RosterScreen) openChat(subjectID string) (screen.Screen, tea.Cmd) {
	previousID := r.store.Current().SelectedID

	if _, err := r.store.Mutate(context.Background(), func(s session.Session) session.Session {
		return session.Select(s, subjectID)
	}); err != nil {
		r.errMsg = err.Error()
		return r, nil
	}

	// Analysis runs for the subject being switched away from.
	if previousID != "" && previousID != subjectID {
		r.analyzer.SubjectSwitched(context.Background(), previousID)
	}

	chat := r.chatFactory(subjectID)
	return r, func() tea.Msg { return router.PushScreenMsg{Screen: chat} }
}

func (r *RosterScreen) handleConfirmKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		r.confirming = false
		subjects := r.store.Current().Subjects
		if r.cursor < len(subjects) {
			id := subjects[r.cursor].ID
			if _, err := r.store.Mutate(context.Background(), func(s session.Session) session.Session {
				return session.DeleteSubject(s, id)
			}); err != nil {
				r.errMsg = err.Error()
			}
		}
		if r.cursor > 0 {
			r.cursor--
		}
	case "n", "N", "esc":
		r.confirming = false
	}
	return r, nil
}

func (r *RosterScreen) handleAddKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	switch msg.String() {
	case "esc":
		r.adding = false
		return r, nil
	case "enter":
		return r.advanceAdd()
	}

	var cmd tea.Cmd
	r.input, cmd = r.input.Update(msg)
	return r, cmd
}

func (r *RosterScreen) advanceAdd() (screen.Screen, tea.Cmd) {
	switch r.addStep {
	case addName:
		name := strings.TrimSpace(r.input.Value())
		if name == "" {
			return r, nil
		}
		r.newName = name
		r.addStep = addLanguage
		r.input = components.NewTextInput("Home language (e.g. Spanish)", false, 40)
		return r, r.input.Init()

	case addLanguage:
		lang := strings.TrimSpace(r.input.Value())
		if lang == "" {
			return r, nil
		}
		r.newLang = lang
		r.addStep = addAge
		r.input = components.NewTextInput("Age", true, 3)
		return r, r.input.Init()

	case addAge:
		age, err := r.input.NumericValue()
		if err != nil || age <= 0 {
			return r, nil
		}
		r.adding = false
		if _, err := r.store.Mutate(context.Background(), func(s session.Session) session.Session {
			return session.AddSubject(s, session.Subject{
				ID:       uuid.New().String(),
				Name:     r.newName,
				Language: r.newLang,
				Age:      age,
			})
		}); err != nil {
			r.errMsg = err.Error()
			return r, nil
		}
		r.cursor = len(r.store.Current().Subjects) - 1
	}
	return r, nil
}

func (r *RosterScreen) View(width, height int) string {
	sess := r.store.Current()

	var sections []string
	if r.errMsg != "" {
		sections = append(sections, lipgloss.NewStyle().Foreground(theme.Error).Render(r.errMsg), "")
	}

	if r.adding {
		prompt := map[addStep]string{
			addName:     "New student's name?",
			addLanguage: "What language do they speak at home?",
			addAge:      "How old are they?",
		}[r.addStep]
		sections = append(sections, theme.Body.Render(prompt), "", r.input.View())
		content := strings.Join(sections, "\n")
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
	}

	if len(sess.Subjects) == 0 {
		sections = append(sections,
			theme.Body.Render("No students yet."),
			"",
			theme.Hint.Render("press 'a' to add your first student"))
		content := strings.Join(sections, "\n")
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
	}

	for i, sub := range sess.Subjects {
		count := sess.MessageCount(sub.ID)
		line := fmt.Sprintf("%s  %s, %d  ·  %d messages", sub.Name, sub.Language, sub.Age, count)
		if i == r.cursor {
			line = theme.Selected.Render("  ▸ " + line)
		} else {
			line = theme.Unselected.Render("    " + line)
		}
		sections = append(sections, line)
	}

	if r.confirming && r.cursor < len(sess.Subjects) {
		sections = append(sections, "",
			lipgloss.NewStyle().Foreground(theme.Error).
				Render(fmt.Sprintf("Remove %s and their history? (y/n)", sess.Subjects[r.cursor].Name)))
	}

	content := strings.Join(sections, "\n")
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}
