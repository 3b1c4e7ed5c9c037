package profile

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	valid := []string{"main", "work", "a", "my-profile", "p_1", strings.Repeat("x", 64)}
	for _, name := range valid {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{"", "Main", "has space", "has/slash", "ü", strings.Repeat("x", 65)}
	for _, name := range invalid {
		if err := ValidateName(name); err == nil {
			t.Errorf("ValidateName(%q) = nil, want error", name)
		}
	}
}

func TestPathsAreScoped(t *testing.T) {
	dir := Dir("work")
	for name, p := range map[string]string{
		"db":   DBPath("work"),
		"lock": LockPath("work"),
		"log":  LogPath("work"),
	} {
		if !strings.HasPrefix(p, dir) {
			t.Errorf("%s path %q not under profile dir %q", name, p, dir)
		}
	}
}

func TestConfigPathUnderBase(t *testing.T) {
	if filepath.Dir(ConfigPath()) != BaseDir() {
		t.Errorf("ConfigPath() = %q, want directly under %q", ConfigPath(), BaseDir())
	}
}

func TestResolveFlagWins(t *testing.T) {
	if got := Resolve("explicit"); got != "explicit" {
		t.Errorf("Resolve(explicit) = %q, want explicit", got)
	}
}
