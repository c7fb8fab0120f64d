package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud", Format: "console"})
	assert.Error(t, err)
}

func TestNewRejectsBadFormat(t *testing.T) {
	_, err := New(Config{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestNewWithRotatingFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "atc.log")
	log, err := New(Config{Level: "debug", Format: "json", File: file, MaxSizeMB: 1})
	require.NoError(t, err)

	log.Named("test").Info("hello", String("k", "v"), Int("n", 1))
	assert.FileExists(t, file)
}

func TestNopLogger(t *testing.T) {
	log := NewNop()
	assert.NotPanics(t, func() {
		log.Named("x").With(Bool("b", true)).Warn("ignored")
	})
}
