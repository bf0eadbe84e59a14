package session

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDir(t *testing.T) {
	home, _ := os.UserHomeDir()
	got := Dir("default")
	want := filepath.Join(home, ".comfytui", "profiles", "default")
	if got != want {
		t.Errorf("Dir(default) = %q, want %q", got, want)
	}
}

func TestLogPath(t *testing.T) {
	got := LogPath("clinic")
	want := filepath.Join(Dir("clinic"), "logs", "comfytui.log")
	if got != want {
		t.Errorf("LogPath(clinic) = %q, want %q", got, want)
	}
}

func TestConfigPath(t *testing.T) {
	got := ConfigPath()
	want := filepath.Join(BaseDir(), "config.toml")
	if got != want {
		t.Errorf("ConfigPath() = %q, want %q", got, want)
	}
}

func TestResolve(t *testing.T) {
	t.Setenv("COMFY_PROFILE", "")
	if got := Resolve("override"); got != "override" {
		t.Errorf("Resolve(override) = %q", got)
	}
	if got := Resolve(""); got != DefaultProfile {
		t.Errorf("Resolve(\"\") = %q, want %q", got, DefaultProfile)
	}
	t.Setenv("COMFY_PROFILE", "clinic")
	if got := Resolve(""); got != "clinic" {
		t.Errorf("Resolve with env = %q, want clinic", got)
	}
}
