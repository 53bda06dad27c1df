package chat

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"bridgetalk/internal/pipeline"
	"bridgetalk/internal/session"
	"bridgetalk/internal/ui/theme"
)

func (c *ChatScreen) View(width, height int) string {
	sess := c.store.Current()
	sub, ok := sess.SubjectByID(c.subjectID)
	if !ok {
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
			theme.Hint.Render("This student was removed."))
	}

	history := c.renderHistory(sess, width, height-6)
	compose := c.renderCompose(sub)

	var overlay string
	if c.options != nil {
		overlay = c.renderOptions(width)
	} else if c.waiting {
		overlay = theme.Hint.Render("  thinking of phrasings...")
	} else if c.statusMsg != "" {
		overlay = lipgloss.NewStyle().Foreground(theme.Error).Render("  " + c.statusMsg)
	}

	parts := []string{history}
	if overlay != "" {
		parts = append(parts, overlay)
	}
	parts = append(parts, compose)
	return strings.Join(parts, "\n")
}

func (c *ChatScreen) renderHistory(sess session.Session, width, maxHeight int) string {
	msgs := sess.Messages[c.subjectID]
	if len(msgs) == 0 {
		return theme.Hint.Render("  No messages yet. Type below to start.")
	}

	bubbleWidth := width - 10
	if bubbleWidth < 20 {
		bubbleWidth = 20
	}

	var lines []string
	for i := range msgs {
		lines = append(lines, c.renderMessage(&msgs[i], bubbleWidth))
	}

	joined := strings.Join(lines, "\n")
	// Show the tail of the conversation.
	all := strings.Split(joined, "\n")
	if maxHeight > 0 && len(all) > maxHeight {
		all = all[len(all)-maxHeight:]
	}
	return strings.Join(all, "\n")
}

func (c *ChatScreen) renderMessage(m *session.Message, width int) string {
	style := theme.TeacherBubble
	label := "you"
	if m.Sender == session.RoleStudent {
		style = theme.StudentBubble
		label = "student"
	}

	body := m.Adapted
	switch m.Adapted {
	case pipeline.PlaceholderText:
		body = theme.Hint.Render("translating...")
	case pipeline.FailedText:
		body = lipgloss.NewStyle().Foreground(theme.Error).Render(m.Adapted)
	}
	if m.AudioLoading {
		body += theme.Hint.Render("  ♪")
	}

	header := theme.Hint.Render(fmt.Sprintf("%s · %s", label, m.CreatedAt.Local().Format("15:04")))
	content := header + "\n" + body
	if m.Original != m.Adapted && m.Adapted != pipeline.PlaceholderText {
		content += "\n" + theme.Note.Render(m.Original)
	}
	if m.Note != "" {
		content += "\n" + theme.Note.Render(m.Note)
	}

	return style.MaxWidth(width).Render(content)
}

func (c *ChatScreen) renderCompose(sub session.Subject) string {
	var mode string
	if c.assistMode {
		mode = theme.Selected.Render("[assist]")
	} else if c.sender == session.RoleStudent {
		mode = lipgloss.NewStyle().Foreground(theme.Secondary).Render("[student reply]")
	} else {
		mode = theme.Hint.Render("[to " + sub.Name + "]")
	}
	return mode + " " + c.input.View()
}

func (c *ChatScreen) renderOptions(width int) string {
	var lines []string
	lines = append(lines, theme.Body.Render("  How would you like to say it?"))
	for i, opt := range c.options.Options {
		label := fmt.Sprintf("%d. %s", i+1, opt.Label)
		body := opt.ReferenceText
		if i == c.optCursor {
			lines = append(lines, theme.Selected.Render("  ▸ "+label))
		} else {
			lines = append(lines, theme.Unselected.Render("    "+label))
		}
		lines = append(lines, theme.Hint.Render("      "+body))
	}
	card := strings.Join(lines, "\n")
	return theme.Card.MaxWidth(width - 4).Render(card)
}
