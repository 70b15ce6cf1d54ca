package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolsMarkdown(t *testing.T) {
	markdown, err := toolsMarkdown()
	require.NoError(t, err)

	assert.Contains(t, markdown, "# MCP Tools Reference")
	assert.Contains(t, markdown, "- [Calendar Tools](#calendar-tools)")
	assert.Contains(t, markdown, "### calendar_find_free_slots")
	assert.Contains(t, markdown, "- `participants` (required): ")
	assert.Contains(t, markdown, "- `slotLength` (required): ")
	assert.Contains(t, markdown, "- `weeks` (optional): ")
}

func TestGetCategoryFromToolName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"calendar_find_free_slots", "Calendar Tools"},
		{"gmail_list_threads", "Other"},
		{"standalone", "Other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, getCategoryFromToolName(tt.name))
		})
	}
}
