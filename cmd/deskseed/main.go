// deskseed populates a profile's store with a conversation roster, either
// from a TOML fixture file or from a small built-in demo set. Run it while
// the engine is not holding the profile.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"github.com/matfelipe/deskchat/internal/lock"
	"github.com/matfelipe/deskchat/internal/profile"
	"github.com/matfelipe/deskchat/internal/store"
)

type fixture struct {
	Conversations []seedConversation `toml:"conversations"`
}

type seedConversation struct {
	ID           string   `toml:"id"`
	Name         string   `toml:"name"`
	Kind         string   `toml:"kind"`
	Participants []string `toml:"participants"`
	Presence     string   `toml:"presence"`
	Messages     []string `toml:"messages"`
}

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	fileFlag := flag.String("file", "", "TOML roster fixture (default: built-in demo roster)")
	flag.Parse()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fix := demoFixture()
	if *fileFlag != "" {
		fix = &fixture{}
		if _, err := toml.DecodeFile(*fileFlag, fix); err != nil {
			fmt.Fprintf(os.Stderr, "error: read fixture: %v\n", err)
			os.Exit(1)
		}
	}
	if len(fix.Conversations) == 0 {
		fmt.Fprintln(os.Stderr, "error: fixture has no conversations")
		os.Exit(1)
	}

	if err := profile.EnsureDir(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	lk, err := lock.Acquire(profile.Dir(profileName))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = lk.Release() }()

	db, err := store.Open(profile.DBPath(profileName))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()
	if _, err := db.Migrate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: migrate: %v\n", err)
		os.Exit(1)
	}

	if err := seed(db, fix); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded %d conversations into profile %q\n", len(fix.Conversations), profileName)
}

func seed(db *store.DB, fix *fixture) error {
	now := time.Now().UnixMilli()
	for i, sc := range fix.Conversations {
		kind := sc.Kind
		if kind == "" {
			kind = store.KindDirect
		}
		presence := sc.Presence
		if presence == "" {
			presence = store.PresenceOffline
		}
		conv := &store.Conversation{
			ID:           sc.ID,
			Name:         sc.Name,
			Kind:         kind,
			Participants: sc.Participants,
			Presence:     presence,
		}
		if err := db.UpsertConversation(conv); err != nil {
			return fmt.Errorf("conversation %q: %w", sc.ID, err)
		}

		// Older conversations sink down the roster.
		base := now - int64(i+1)*60_000
		sender := sc.ID
		if len(sc.Participants) > 0 {
			sender = sc.Participants[0]
		}
		var lastTS int64
		var lastBody string
		for j, body := range sc.Messages {
			ts := base + int64(j)*1000
			msg := &store.Message{
				ConversationID: sc.ID,
				MsgID:          uuid.New().String(),
				SenderID:       sender,
				SenderName:     sc.Name,
				Body:           body,
				FromMe:         false,
				Status:         store.StatusRead,
				Timestamp:      ts,
			}
			if err := db.InsertMessage(msg); err != nil {
				return fmt.Errorf("conversation %q message %d: %w", sc.ID, j, err)
			}
			lastTS, lastBody = ts, body
		}
		if lastBody != "" {
			if err := db.UpdateSummary(sc.ID, lastTS, lastBody); err != nil {
				return fmt.Errorf("conversation %q summary: %w", sc.ID, err)
			}
		}
	}
	return nil
}

func demoFixture() *fixture {
	return &fixture{
		Conversations: []seedConversation{
			{
				ID: "ana", Name: "Ana Souza", Kind: store.KindDirect,
				Participants: []string{"ana"}, Presence: store.PresenceOnline,
				Messages: []string{"Oi! Conseguiu ver o documento?", "Me avisa quando puder."},
			},
			{
				ID: "bruno", Name: "Bruno Lima", Kind: store.KindDirect,
				Participants: []string{"bruno"}, Presence: store.PresenceAway,
				Messages: []string{"Valeu pela ajuda ontem!"},
			},
			{
				ID: "time-projeto", Name: "Time do Projeto", Kind: store.KindGroup,
				Participants: []string{"ana", "bruno", "clara"}, Presence: store.PresenceOnline,
				Messages: []string{"Reuniao confirmada para sexta.", "Alguem revisa o relatorio?"},
			},
			{
				ID: "clara", Name: "Clara Mendes", Kind: store.KindDirect,
				Participants: []string{"clara"}, Presence: store.PresenceOffline,
				Messages: []string{"Depois te mando as fotos da viagem."},
			},
		},
	}
}
