package chat

import (
	"context"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"

	"bridgetalk/internal/audio"
	"bridgetalk/internal/pipeline"
	"bridgetalk/internal/screen"
	"bridgetalk/internal/session"
	"bridgetalk/internal/ui/components"
	"bridgetalk/internal/ui/layout"
)

const refreshInterval = 200 * time.Millisecond

type refreshMsg time.Time

type optionsMsg struct {
	result *pipeline.OptionsResult
}

type spokeMsg struct {
	err error
}

// ChatScreen is the conversation view for one subject: message history,
// a compose line, the strategy-assist overlay, and spoken playback.
type ChatScreen struct {
	store      *session.Store
	translator *pipeline.Translator
	assist     *pipeline.Assist
	audio      *audio.Pipeline

	subjectID string
	input     components.TextInput

	assistMode bool
	waiting    bool // an assist request is outstanding
	sender     session.Role
	options    *pipeline.OptionsResult
	optCursor  int
	statusMsg  string
}

var _ screen.Screen = (*ChatScreen)(nil)
var _ screen.KeyHintProvider = (*ChatScreen)(nil)

// New creates a chat screen for the given subject.
func New(store *session.Store, translator *pipeline.Translator, assist *pipeline.Assist, audioPipe *audio.Pipeline, subjectID string) *ChatScreen {
	return &ChatScreen{
		store:      store,
		translator: translator,
		assist:     assist,
		audio:      audioPipe,
		subjectID:  subjectID,
		sender:     session.RoleTeacher,
		input:      components.NewTextInput("Type a message...", false, 500),
	}
}

func (c *ChatScreen) Title() string {
	if sub, ok := c.store.Current().SubjectByID(c.subjectID); ok {
		return "Chat · " + sub.Name
	}
	return "Chat"
}

func (c *ChatScreen) Init() tea.Cmd {
	return tea.Batch(c.input.Init(), refreshCmd())
}

func (c *ChatScreen) KeyHints() []layout.KeyHint {
	if c.options != nil {
		return []layout.KeyHint{
			{Key: "1-3/↑↓", Description: "Pick a phrasing"},
			{Key: "Enter", Description: "Send"},
			{Key: "Esc", Description: "Discard"},
		}
	}
	hints := []layout.KeyHint{
		{Key: "Enter", Description: "Send"},
		{Key: "Tab", Description: c.modeHint()},
		{Key: "Ctrl+R", Description: "Switch speaker"},
		{Key: "Ctrl+S", Description: "Speak last"},
	}
	return hints
}

func (c *ChatScreen) modeHint() string {
	if c.assistMode {
		return "Assist: on"
	}
	return "Assist: off"
}

func (c *ChatScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case refreshMsg:
		return c.handleRefresh()

	case optionsMsg:
		return c.handleOptions(msg)

	case spokeMsg:
		if msg.err != nil {
			c.statusMsg = msg.err.Error()
		}
		return c, nil

	case tea.KeyMsg:
		return c.handleKey(msg)
	}

	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	return c, cmd
}

// handleRefresh polls the assist pipeline and keeps the view current
// while background resolutions patch the store.
func (c *ChatScreen) handleRefresh() (screen.Screen, tea.Cmd) {
	if c.waiting {
		if result, ok := c.assist.Consume(); ok {
			c.waiting = false
			return c, func() tea.Msg { return optionsMsg{result: result} }
		}
	}
	return c, refreshCmd()
}

func (c *ChatScreen) handleOptions(msg optionsMsg) (screen.Screen, tea.Cmd) {
	if msg.result.FellBack {
		// The intent went out as a plain translation instead.
		c.statusMsg = "Couldn't suggest phrasings; sent your message directly."
		return c, refreshCmd()
	}
	c.options = msg.result
	c.optCursor = 0
	return c, refreshCmd()
}

func (c *ChatScreen) handleKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	if c.options != nil {
		return c.handleOptionKey(msg)
	}

	switch msg.String() {
	case "tab":
		c.assistMode = !c.assistMode
		return c, nil
	case "ctrl+r":
		if c.sender == session.RoleTeacher {
			c.sender = session.RoleStudent
		} else {
			c.sender = session.RoleTeacher
		}
		return c, nil
	case "ctrl+s":
		return c, c.speakLast()
	case "enter":
		return c.send()
	}

	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	return c, cmd
}

func (c *ChatScreen) handleOptionKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	opts := c.options.Options
	switch msg.String() {
	case "esc":
		// Discarding the overlay never touches the session.
		c.options = nil
		return c, nil
	case "up", "k":
		if c.optCursor > 0 {
			c.optCursor--
		}
	case "down", "j":
		if c.optCursor < len(opts)-1 {
			c.optCursor++
		}
	case "1", "2", "3":
		c.optCursor = int(msg.String()[0] - '1')
		return c.commitOption()
	case "enter":
		return c.commitOption()
	}
	return c, nil
}

func (c *ChatScreen) commitOption() (screen.Screen, tea.Cmd) {
	if c.optCursor < 0 || c.optCursor >= len(c.options.Options) {
		return c, nil
	}
	opt := c.options.Options[c.optCursor]
	c.options = nil

	if _, err := c.assist.Commit(context.Background(), c.subjectID, opt); err != nil {
		c.statusMsg = err.Error()
	}
	return c, nil
}

func (c *ChatScreen) send() (screen.Screen, tea.Cmd) {
	text := strings.TrimSpace(c.input.Value())
	if text == "" {
		return c, nil
	}
	c.statusMsg = ""
	resetCmd := c.input.Reset()

	if c.assistMode && c.sender == session.RoleTeacher {
		c.waiting = true
		c.assist.Request(context.Background(), c.subjectID, text)
		return c, resetCmd
	}

	if _, err := c.translator.Send(context.Background(), c.subjectID, text, c.sender); err != nil {
		c.statusMsg = err.Error()
	}
	return c, resetCmd
}

// speakLast plays the most recent resolved message aloud.
func (c *ChatScreen) speakLast() tea.Cmd {
	sess := c.store.Current()
	msgs := sess.Messages[c.subjectID]

	var target *session.Message
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Adapted != pipeline.PlaceholderText && msgs[i].Adapted != pipeline.FailedText {
			target = &msgs[i]
			break
		}
	}
	if target == nil {
		return nil
	}

	subjectID := c.subjectID
	messageID := target.ID
	pipe := c.audio
	return func() tea.Msg {
		return spokeMsg{err: pipe.Speak(context.Background(), subjectID, messageID)}
	}
}

func refreshCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}
