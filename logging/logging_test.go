package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestRotatingWriterKeepsOneBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flatsift.log")
	w, err := NewRotatingWriter(path, 10)
	if err != nil {
		t.Fatalf("NewRotatingWriter: %v", err)
	}
	defer w.Close()

	w.Write([]byte("first line\n")) // over the limit, rotates
	w.Write([]byte("second\n"))

	backup, err := os.ReadFile(path + ".1")
	if err != nil {
		t.Fatalf("backup missing: %v", err)
	}
	if string(backup) != "first line\n" {
		t.Errorf("backup = %q", backup)
	}
	current, _ := os.ReadFile(path)
	if string(current) != "second\n" {
		t.Errorf("current = %q", current)
	}
}

func TestSetupWritesJSONToFile(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	path := filepath.Join(t.TempDir(), "flatsift.log")
	w, err := Setup(Options{Path: path, Level: "warn"})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer w.Close()

	log.Info().Msg("hidden")
	log.Warn().Str("constraint", "paris").Msg("shown")

	data, _ := os.ReadFile(path)
	out := string(data)
	if strings.Contains(out, "hidden") {
		t.Error("info line written at warn level")
	}
	if !strings.Contains(out, `"constraint":"paris"`) || !strings.Contains(out, `"message":"shown"`) {
		t.Errorf("log file = %q", out)
	}
}

func TestSetupWithoutPath(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	w, err := Setup(Options{Level: "bogus"})
	if err != nil || w != nil {
		t.Fatalf("Setup = %v, %v", w, err)
	}
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("level = %v, want info fallback", zerolog.GlobalLevel())
	}
}
