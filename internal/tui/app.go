// Package tui is the terminal frontend. It issues commands through the
// engine façade and redraws from bus events; no state lives here beyond
// what is on screen.
package tui

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matfelipe/deskchat/internal/bus"
	"github.com/matfelipe/deskchat/internal/call"
	"github.com/matfelipe/deskchat/internal/engine"
	"github.com/matfelipe/deskchat/internal/peer"
	"github.com/matfelipe/deskchat/internal/store"
	"github.com/matfelipe/deskchat/internal/tui/views"
	"github.com/rivo/tview"
)

const rosterLimit = 200

// App is the main TUI application shell.
type App struct {
	app         *tview.Application
	pages       *tview.Pages
	orch        *engine.Orchestrator
	statusBar   *views.StatusBar
	convList    *views.ConversationList
	filterInput *tview.InputField
	msgView     *views.MessageView
	composer    *views.Composer
	searchV     *views.SearchView
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(orch *engine.Orchestrator, profileName string) *App {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:         tview.NewApplication(),
		pages:       tview.NewPages(),
		orch:        orch,
		statusBar:   views.NewStatusBar(),
		convList:    views.NewConversationList(),
		filterInput: tview.NewInputField().SetLabel(" / ").SetFieldWidth(0),
		msgView:     views.NewMessageView(),
		composer:    views.NewComposer(),
		searchV:     views.NewSearchView(),
		ctx:         ctx,
		cancel:      cancel,
	}

	a.statusBar.SetProfile(profileName)
	a.statusBar.SetCall(orch.CallSnapshot())
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupCallbacks() {
	a.convList.SetSelectedFunc(func(row, col int) {
		if id := a.convList.Selected(); id != "" {
			a.openConversation(id)
		}
	})

	a.composer.SetOnSend(func(text string) {
		if _, err := a.orch.Submit(text); err != nil {
			a.flash("Send failed: " + err.Error())
		}
	})

	a.searchV.SetOnQuery(func(query string) {
		results, err := a.orch.SearchMessages(query, "", 100)
		if err != nil {
			a.flash("Search failed: " + err.Error())
			return
		}
		a.searchV.Update(results)
		a.app.SetFocus(a.searchV.Results())
	})

	a.searchV.Results().SetSelectedFunc(func(row, col int) {
		if id := a.searchV.SelectedResult(); id != "" {
			a.openConversation(id)
		}
	})

	// Roster filter: live case-insensitive match over name and preview.
	a.filterInput.SetChangedFunc(func(string) {
		a.reloadRoster()
	})
	a.filterInput.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEscape {
			a.filterInput.SetText("")
			a.reloadRoster()
		}
		a.app.SetFocus(a.convList)
	})
}

func (a *App) setupLayout() {
	chatFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.msgView, 0, 1, false).
		AddItem(a.composer, 1, 0, false)

	convFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.convList, 0, 1, true).
		AddItem(a.filterInput, 1, 0, false)

	a.pages.AddPage("conversations", convFlex, true, true)
	a.pages.AddPage("chat", chatFlex, true, false)
	a.pages.AddPage("search", a.searchV, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)
	a.app.SetInputCapture(a.handleKey)
}

func (a *App) handleKey(event *tcell.EventKey) *tcell.EventKey {
	currentPage, _ := a.pages.GetFrontPage()

	if event.Key() == tcell.KeyEscape {
		switch currentPage {
		case "chat", "search":
			a.orch.CloseConversation()
			a.showConversations()
			return nil
		}
	}

	// Let text input widgets handle all keys normally.
	if _, ok := a.app.GetFocus().(*tview.InputField); ok {
		return event
	}
	if event.Key() != tcell.KeyRune {
		return event
	}

	// Call controls work on any page; a call can ring anywhere. They only
	// capture keys while a session exists.
	if a.orch.CallSnapshot().State != call.Idle {
		switch event.Rune() {
		case 'a':
			a.callCmd(a.orch.AnswerCall)
			return nil
		case 'd':
			a.callCmd(a.orch.DeclineCall)
			return nil
		case 'h':
			a.callCmd(a.orch.EndCall)
			return nil
		case 'm':
			a.callCmd(a.orch.ToggleMute)
			return nil
		case 'V':
			a.callCmd(a.orch.ToggleVideo)
			return nil
		case 'o':
			a.callCmd(a.orch.ToggleSpeaker)
			return nil
		}
	}

	switch event.Rune() {
	case 'q':
		a.Stop()
		return nil
	case 's':
		a.pages.SwitchToPage("search")
		a.app.SetFocus(a.searchV.Input())
		return nil
	}

	switch currentPage {
	case "conversations":
		switch event.Rune() {
		case '/':
			a.app.SetFocus(a.filterInput)
			return nil
		case 'I':
			a.simulateIncoming()
			return nil
		}
	case "chat":
		switch event.Rune() {
		case 'i':
			a.app.SetFocus(a.composer.InputField)
			return nil
		case '/':
			a.pages.SwitchToPage("search")
			a.app.SetFocus(a.searchV.Input())
			return nil
		case 'c':
			a.startCall(call.MediumAudio)
			return nil
		case 'v':
			a.startCall(call.MediumVideo)
			return nil
		case 'I':
			a.simulateIncoming()
			return nil
		}
	}

	return event
}

// callCmd runs a call command, flashing any rejection.
func (a *App) callCmd(cmd func() error) {
	if err := cmd(); err != nil {
		a.flash(err.Error())
	}
	a.statusBar.SetCall(a.orch.CallSnapshot())
}

func (a *App) startCall(medium call.Medium) {
	if err := a.orch.StartCall(a.ctx, medium); err != nil {
		a.flash(err.Error())
	}
}

func (a *App) simulateIncoming() {
	id := a.orch.ActiveConversation()
	if id == "" {
		id = a.convList.Selected()
	}
	if id == "" {
		return
	}
	if err := a.orch.SimulateIncomingCall(id, call.MediumAudio); err != nil {
		a.flash(err.Error())
	}
}

func (a *App) openConversation(id string) {
	if err := a.orch.OpenConversation(id); err != nil {
		a.flash("Open failed: " + err.Error())
		return
	}
	conv, err := a.orch.Conversation(id)
	if err != nil || conv == nil {
		a.flash("Load failed")
		return
	}
	name := conv.Name
	if name == "" {
		name = conv.ID
	}
	a.msgView.SetConversationName(name)
	a.msgView.SetTyping(a.orch.Typing(id))
	a.reloadMessages(id)
	a.pages.SwitchToPage("chat")
	a.app.SetFocus(a.msgView)
}

func (a *App) showConversations() {
	a.reloadRoster()
	a.pages.SwitchToPage("conversations")
	a.app.SetFocus(a.convList)
}

// reloadRoster refreshes the conversation list, honoring the active filter.
func (a *App) reloadRoster() {
	var (
		convs []store.Conversation
		err   error
	)
	if query := a.filterInput.GetText(); query != "" {
		convs, err = a.orch.SearchConversations(query, rosterLimit)
	} else {
		convs, err = a.orch.Conversations(rosterLimit)
	}
	if err != nil {
		a.flash("Load failed: " + err.Error())
		return
	}
	a.convList.Update(convs)
}

func (a *App) reloadMessages(conversationID string) {
	msgs, err := a.orch.Messages(conversationID, 500)
	if err != nil {
		a.flash("Load failed: " + err.Error())
		return
	}
	a.msgView.Update(msgs)
}

// flash shows a transient status-bar message.
func (a *App) flash(msg string) {
	a.statusBar.SetFlash(msg)
	time.AfterFunc(5*time.Second, func() {
		a.app.QueueUpdateDraw(func() {
			a.statusBar.SetFlash("")
		})
	})
}

// Run starts the TUI application and its event loop.
func (a *App) Run() error {
	a.reloadRoster()
	go a.eventLoop()
	return a.app.Run()
}

// eventLoop redraws the UI from engine events.
func (a *App) eventLoop() {
	ch, unsub := a.orch.Subscribe("", 512)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			a.app.QueueUpdateDraw(func() {
				a.handleEvent(evt)
			})
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) handleEvent(evt bus.Event) {
	currentPage, _ := a.pages.GetFrontPage()
	active := a.orch.ActiveConversation()

	switch evt.Kind {
	case bus.KindMessageAppended, bus.KindMessageStatus, bus.KindConversationUpdated:
		if currentPage == "conversations" {
			a.reloadRoster()
		}
		if currentPage == "chat" && active != "" {
			a.reloadMessages(active)
		}
	case bus.KindTypingChanged:
		tc, ok := evt.Payload.(peer.TypingChange)
		if ok && tc.ConversationID == active {
			a.msgView.SetTyping(tc.Typing)
		}
	case bus.KindCallStateChanged:
		sc, ok := evt.Payload.(call.StateChange)
		if !ok {
			return
		}
		a.statusBar.SetCall(sc.Snapshot)
	case bus.KindCallTick:
		snap, ok := evt.Payload.(call.Snapshot)
		if ok {
			a.statusBar.SetCall(snap)
		}
	case bus.KindCallWarning:
		w, ok := evt.Payload.(call.Warning)
		if ok {
			a.flash("Call failed: " + w.Reason)
		}
	}
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
