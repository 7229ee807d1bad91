package presenter

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	p := New()
	assert.Equal(t, os.Stdout, p.output)
	assert.Equal(t, os.Stderr, p.errorOutput)
	assert.False(t, p.quiet)
}

func TestDetectColorMode(t *testing.T) {
	tests := []struct {
		name          string
		noColor       string
		blogsyncColor string
		expected      ColorMode
	}{
		{"NO_COLOR set", "1", "always", ColorNever},
		{"always", "", "always", ColorAlways},
		{"force", "", "force", ColorAlways},
		{"never", "", "never", ColorNever},
		{"off", "", "off", ColorNever},
		{"auto", "", "auto", ColorAuto},
		{"unset", "", "", ColorAuto},
		{"unknown value", "", "rainbow", ColorAuto},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NO_COLOR", tt.noColor)
			t.Setenv("BLOGSYNC_COLOR", tt.blogsyncColor)
			assert.Equal(t, tt.expected, detectColorMode())
		})
	}
}

func TestError(t *testing.T) {
	var errOut bytes.Buffer
	p := NewWithOptions(nil, &errOut, ColorNever)
	p.SetQuiet(true)

	p.Error(errors.New("connection refused"), "Failed to sync hello.mdx")
	assert.Equal(t, "[ERROR] Failed to sync hello.mdx: connection refused\n", errOut.String())

	errOut.Reset()
	p.Error(errors.New("boom"), "")
	assert.Equal(t, "[ERROR] boom\n", errOut.String())

	errOut.Reset()
	p.Error(nil, "ignored")
	assert.Empty(t, errOut.String())
}

func TestMessages(t *testing.T) {
	var out bytes.Buffer
	p := NewWithOptions(&out, nil, ColorNever)

	p.Success("Synced: \"Hello\"")
	p.Warning("Skipping draft.mdx")
	p.Info("Found 2 blog post(s)")
	p.Section("Plan")
	p.Separator()

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	assert.Equal(t, "✓ Synced: \"Hello\"", lines[0])
	assert.Equal(t, "⚠ Skipping draft.mdx", lines[1])
	assert.Equal(t, "Found 2 blog post(s)", lines[2])
	assert.Equal(t, "Plan", lines[3])
	assert.Equal(t, "----", lines[4])
	assert.Equal(t, strings.Repeat("-", 60), lines[5])
}

func TestQuietMode(t *testing.T) {
	var out bytes.Buffer
	p := NewWithOptions(&out, &out, ColorNever)
	p.SetQuiet(true)

	p.Success("a")
	p.Warning("b")
	p.Info("c")
	p.Section("d")
	p.Separator()
	p.Counts(Counts{Synced: 3})

	assert.Empty(t, out.String())
}

func TestCounts(t *testing.T) {
	var out, errOut bytes.Buffer
	p := NewWithOptions(&out, &errOut, ColorNever)

	p.Counts(Counts{Synced: 2, Skipped: 1})
	assert.Equal(t, "Sync complete: 2 synced, 0 failed, 1 skipped\n", out.String())
	assert.Empty(t, errOut.String())

	out.Reset()
	p.SetQuiet(true)
	p.Counts(Counts{Synced: 1, Failed: 1})
	assert.Empty(t, out.String())
	assert.Equal(t, "Sync complete: 1 synced, 1 failed, 0 skipped\n", errOut.String())
}
