package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
)

func restoreLogger(t *testing.T) {
	t.Helper()
	level, out, formatter := log.GetLevel(), log.StandardLogger().Out, log.StandardLogger().Formatter
	t.Cleanup(func() {
		log.SetLevel(level)
		log.SetOutput(out)
		log.SetFormatter(formatter)
	})
}

func TestInit_Level(t *testing.T) {
	restoreLogger(t)
	if err := Init("debug", Console); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if log.GetLevel() != log.DebugLevel {
		t.Errorf("level = %v, want debug", log.GetLevel())
	}
}

func TestInit_BadLevel(t *testing.T) {
	restoreLogger(t)
	if err := Init("loud", ""); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

func TestInit_File(t *testing.T) {
	restoreLogger(t)
	path := filepath.Join(t.TempDir(), "vizu.log")
	if err := Init("info", path); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	log.WithField("package", "vizu-plugin").Info("update check finished")
	log.Debug("hidden at info level")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "update check finished") {
		t.Errorf("log file missing message: %q", out)
	}
	if !strings.Contains(out, "package=vizu-plugin") {
		t.Errorf("log file missing field: %q", out)
	}
	if strings.Contains(out, "hidden at info level") {
		t.Errorf("debug line written at info level: %q", out)
	}
}
