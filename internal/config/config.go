package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.deskchat/config.toml.
type Config struct {
	DefaultProfile string   `toml:"default_profile"`
	Identity       Identity `toml:"identity"`
	Timings        Timings  `toml:"timings"`
	Media          Media    `toml:"media"`
}

// Identity describes the local user, queried on every message submission.
type Identity struct {
	UserID      string `toml:"user_id"`
	DisplayName string `toml:"display_name"`
}

// Timings holds every delay the engine schedules, in milliseconds.
// Tests shrink these to keep timer-driven paths fast.
type Timings struct {
	SentAfterMs      int `toml:"sent_after_ms"`
	DeliveredAfterMs int `toml:"delivered_after_ms"`
	ReadAfterMs      int `toml:"read_after_ms"`
	TypingMinMs      int `toml:"typing_min_ms"`
	TypingMaxMs      int `toml:"typing_max_ms"`
	ReplyMinMs       int `toml:"reply_min_ms"`
	ReplyMaxMs       int `toml:"reply_max_ms"`
	RingTimeoutMs    int `toml:"ring_timeout_ms"`
	CallTickMs       int `toml:"call_tick_ms"`
}

// Media is the device-permission policy for the probing gateway.
type Media struct {
	AllowAudio bool `toml:"allow_audio"`
	AllowVideo bool `toml:"allow_video"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DefaultProfile: "main",
		Identity: Identity{
			UserID:      "me",
			DisplayName: "Me",
		},
		Timings: Timings{
			SentAfterMs:      700,
			DeliveredAfterMs: 1400,
			ReadAfterMs:      2600,
			TypingMinMs:      800,
			TypingMaxMs:      1600,
			ReplyMinMs:       1200,
			ReplyMaxMs:       2600,
			RingTimeoutMs:    15000,
			CallTickMs:       1000,
		},
		Media: Media{
			AllowAudio: true,
			AllowVideo: true,
		},
	}
}

// SentAfter is the sending→sent delay.
func (t Timings) SentAfter() time.Duration { return ms(t.SentAfterMs) }

// DeliveredAfter is the sent→delivered delay.
func (t Timings) DeliveredAfter() time.Duration { return ms(t.DeliveredAfterMs) }

// ReadAfter is the delivered→read delay.
func (t Timings) ReadAfter() time.Duration { return ms(t.ReadAfterMs) }

// TypingWindow bounds the delay before the remote side starts typing.
func (t Timings) TypingWindow() (time.Duration, time.Duration) {
	return ms(t.TypingMinMs), ms(t.TypingMaxMs)
}

// ReplyWindow bounds how long the remote side types before replying.
func (t Timings) ReplyWindow() (time.Duration, time.Duration) {
	return ms(t.ReplyMinMs), ms(t.ReplyMaxMs)
}

// RingTimeout is the incoming-call auto-decline window.
func (t Timings) RingTimeout() time.Duration { return ms(t.RingTimeoutMs) }

// CallTick is the active-call elapsed counter interval.
func (t Timings) CallTick() time.Duration { return ms(t.CallTickMs) }

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// Load reads config from the given path. Returns an error if the file is missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
