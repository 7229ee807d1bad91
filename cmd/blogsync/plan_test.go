package main

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dileepadev/blogsync/pkg/syncer"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short", "Hello", "Hello"},
		{"exact", strings.Repeat("a", 10), strings.Repeat("a", 10)},
		{"ascii", strings.Repeat("a", 11), strings.Repeat("a", 7) + "..."},
		{"multibyte", strings.Repeat("é", 11), strings.Repeat("é", 7) + "..."},
		{"cjk fits", strings.Repeat("日", 10), strings.Repeat("日", 10)},
		{"trailing space", "abcdef  ghij", "abcdef..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, 10)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
			assert.LessOrEqual(t, utf8.RuneCountInString(got), 10)
		})
	}
}

func TestRenderTableKeepsMultibyteTitlesValid(t *testing.T) {
	title := strings.Repeat("ü", 40) + strings.Repeat("😀", 40)
	out := &PlanOutput{Entries: []syncer.Entry{{
		Filename: "umlaut.mdx",
		Slug:     "umlaut",
		Action:   syncer.ActionCreate,
		Index:    1,
		Title:    title,
	}}}

	var buf bytes.Buffer
	require.NoError(t, out.renderTable(&buf))

	assert.True(t, utf8.ValidString(buf.String()))
	assert.Contains(t, buf.String(), truncate(title, maxTitleWidth))
}
