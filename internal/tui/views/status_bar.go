package views

import (
	"fmt"
	"time"

	"github.com/matfelipe/deskchat/internal/call"
	"github.com/rivo/tview"
)

// StatusBar displays the profile name, the call-session line and transient
// flash messages.
type StatusBar struct {
	*tview.TextView
	profile string
	flash   string
	snap    call.Snapshot
}

// NewStatusBar creates a new status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv}
}

// SetProfile updates the profile name display.
func (sb *StatusBar) SetProfile(name string) {
	sb.profile = name
	sb.render()
}

// SetCall updates the call-session line.
func (sb *StatusBar) SetCall(snap call.Snapshot) {
	sb.snap = snap
	sb.render()
}

// SetFlash sets a temporary message.
func (sb *StatusBar) SetFlash(msg string) {
	sb.flash = msg
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	clock := time.Now().Format("15:04")

	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s | %s", sb.profile, callLine(sb.snap), clock)
	if sb.flash != "" {
		line += fmt.Sprintf(" | [yellow]%s[-]", sb.flash)
	}

	_, _ = fmt.Fprint(sb, line)
}

// callLine renders the call session for the status bar.
func callLine(snap call.Snapshot) string {
	switch snap.State {
	case call.RequestingPermission:
		return fmt.Sprintf("[yellow]calling (%s)...[-]", snap.Medium)
	case call.Incoming:
		from := snap.From
		if from == "" {
			from = snap.ConversationID
		}
		return fmt.Sprintf("[green]incoming %s call from %s (a:answer d:decline)[-]", snap.Medium, from)
	case call.Active:
		flags := ""
		if snap.Muted {
			flags += " [red]MUTED[-]"
		}
		if snap.Medium == call.MediumVideo && snap.VideoOff {
			flags += " [red]VIDEO OFF[-]"
		}
		if !snap.SpeakerOn {
			flags += " [::d]speaker off[-:-:-]"
		}
		return fmt.Sprintf("[green]in %s call %s[-]%s", snap.Medium, formatElapsed(snap.ElapsedSeconds), flags)
	default:
		return "ready"
	}
}

func formatElapsed(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
