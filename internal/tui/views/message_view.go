package views

import (
	"fmt"

	"github.com/matfelipe/deskchat/internal/store"
	"github.com/rivo/tview"
)

// MessageView displays the history of a single conversation.
type MessageView struct {
	*tview.TextView
	title  string
	typing bool
	msgs   []store.Message
}

// NewMessageView creates a new message view.
func NewMessageView() *MessageView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Messages ")

	return &MessageView{TextView: tv}
}

// SetConversationName updates the title with the conversation name.
func (mv *MessageView) SetConversationName(name string) {
	mv.title = name
	mv.renderTitle()
}

// SetTyping toggles the typing indicator in the view title.
func (mv *MessageView) SetTyping(typing bool) {
	mv.typing = typing
	mv.renderTitle()
	mv.render()
}

func (mv *MessageView) renderTitle() {
	title := fmt.Sprintf(" %s ", mv.title)
	if mv.typing {
		title = fmt.Sprintf(" %s (typing...) ", mv.title)
	}
	mv.SetTitle(title)
}

// Update refreshes the message view with new messages.
func (mv *MessageView) Update(msgs []store.Message) {
	mv.msgs = msgs
	mv.render()
}

func (mv *MessageView) render() {
	mv.Clear()

	for _, m := range mv.msgs {
		sender := m.SenderName
		if sender == "" {
			sender = m.SenderID
		}
		if m.FromMe {
			sender = "You"
		}

		ts := formatTimestamp(m.Timestamp)
		line := fmt.Sprintf("[::b]%s[-:-:-] [::d]%s %s[-:-:-]\n%s\n\n",
			sanitizeForTerminal(sender), ts, statusGlyph(m), sanitizeForTerminal(m.Body))
		_, _ = fmt.Fprint(mv, line)
	}
	if mv.typing {
		_, _ = fmt.Fprint(mv, "[::d]typing...[-:-:-]\n")
	}

	mv.ScrollToEnd()
}

// statusGlyph renders the delivery status of an outgoing message.
func statusGlyph(m store.Message) string {
	if !m.FromMe {
		return ""
	}
	switch m.Status {
	case store.StatusSending:
		return "[::d]...[-:-:-]"
	case store.StatusSent:
		return "[::d]✓[-:-:-]"
	case store.StatusDelivered:
		return "[::d]✓✓[-:-:-]"
	case store.StatusRead:
		return "[blue]✓✓[-]"
	default:
		return ""
	}
}
