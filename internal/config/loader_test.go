package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadPartialProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")
	content := `
name = "mine"

[rapid_trigger]
enabled = true
threshold_ms = 20

[turbo]
enabled = false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Name != "mine" {
		t.Errorf("name = %q, want mine", p.Name)
	}
	if p.RapidTrigger.ThresholdMs != 20 {
		t.Errorf("threshold = %d, want 20", p.RapidTrigger.ThresholdMs)
	}
	if p.Turbo.Enabled {
		t.Error("turbo should be disabled by the file")
	}
	// Untouched sections keep their defaults.
	if !p.Ghosting.GhostingPrevention {
		t.Error("ghosting prevention should default on")
	}
}

func TestLoadRejectsInvalidProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")
	content := `
[turbo]
repeat_rate_ms = 0
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("invalid profile should fail to load")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("missing file should error")
	}
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")
	if err := os.WriteFile(path, []byte("not = [valid"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("malformed TOML should error")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")

	original, err := Preset("fps")
	if err != nil {
		t.Fatal(err)
	}
	original.RapidTrigger.ThresholdMs = 7

	if err := Save(path, original); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Name != original.Name {
		t.Errorf("name = %q, want %q", loaded.Name, original.Name)
	}
	if loaded.RapidTrigger.ThresholdMs != 7 {
		t.Errorf("threshold = %d, want 7", loaded.RapidTrigger.ThresholdMs)
	}
	if loaded.SnapTap.Enabled != original.SnapTap.Enabled {
		t.Error("snap tap enablement lost in round trip")
	}
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")
	if err := Save(path, DefaultProfile()); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Profile, 1)
	w, err := Watch(path, func(p *Profile) {
		select {
		case reloaded <- p:
		default:
		}
	}, nil, WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	updated := DefaultProfile()
	updated.Name = "updated"
	if err := Save(path, updated); err != nil {
		t.Fatal(err)
	}

	select {
	case p := <-reloaded:
		if p.Name != "updated" {
			t.Errorf("reloaded name = %q, want updated", p.Name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcherSkipsInvalidProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")
	if err := Save(path, DefaultProfile()); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Profile, 1)
	w, err := Watch(path, func(p *Profile) {
		select {
		case reloaded <- p:
		default:
		}
	}, nil, WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("[turbo]\nrepeat_rate_ms = 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case p := <-reloaded:
		t.Errorf("invalid profile delivered: %+v", p)
	case <-time.After(500 * time.Millisecond):
		// No delivery is the expected outcome.
	}
}

func TestWatcherCloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")
	if err := Save(path, DefaultProfile()); err != nil {
		t.Fatal(err)
	}

	w, err := Watch(path, func(*Profile) {}, nil)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
