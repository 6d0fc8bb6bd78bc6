package toolcost_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexdesk.app/credits/internal/features/toolcost"
)

func TestParseSeed(t *testing.T) {
	src := `
tools:
  - tool_type: research
    name: Legal research
    credit_cost: 5
  - tool_type: voice_session
    credit_cost: 15
    active: false
`
	entries, err := toolcost.ParseSeed(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, toolcost.Entry{ToolType: "research", Name: "Legal research", CreditCost: 5, Active: true}, entries[0])
	assert.False(t, entries[1].Active)
}

func TestParseSeedEmpty(t *testing.T) {
	entries, err := toolcost.ParseSeed(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestParseSeedRejects(t *testing.T) {
	cases := map[string]string{
		"duplicate": "tools:\n  - tool_type: chat\n    credit_cost: 1\n  - tool_type: chat\n    credit_cost: 2\n",
		"negative":  "tools:\n  - tool_type: chat\n    credit_cost: -1\n",
		"unknown":   "tools:\n  - tool_type: chat\n    price: 1\n",
		"no type":   "tools:\n  - credit_cost: 1\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := toolcost.ParseSeed(strings.NewReader(src))
			assert.Error(t, err)
		})
	}
}
