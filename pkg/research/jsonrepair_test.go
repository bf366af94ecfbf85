package research

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type repairTarget struct {
	Tasks []string `json:"tasks"`
}

func TestParseJSONRepair_RawJSON(t *testing.T) {
	out, err := parseJSONRepair[repairTarget](`{"tasks": ["a", "b"]}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out.Tasks)
}

func TestParseJSONRepair_FencedCodeBlock(t *testing.T) {
	text := "```json\n{\"tasks\": [\"a\"]}\n```\n"
	out, err := parseJSONRepair[repairTarget](text)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, out.Tasks)
}

func TestParseJSONRepair_FencedWithoutLanguageTag(t *testing.T) {
	text := "```\n{\"tasks\": [\"a\"]}\n```"
	out, err := parseJSONRepair[repairTarget](text)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, out.Tasks)
}

func TestParseJSONRepair_InvalidReturnsError(t *testing.T) {
	_, err := parseJSONRepair[repairTarget]("not json at all")
	assert.Error(t, err)
}

func TestStripCodeFence_RequiresLeadingFence(t *testing.T) {
	_, ok := stripCodeFence(`{"a": 1}`)
	assert.False(t, ok)
}

func TestStripCodeFence_HandlesBraceOnFenceLine(t *testing.T) {
	// When the opening fence line itself contains '{', it is not treated
	// as a language tag and is preserved.
	stripped, ok := stripCodeFence("```{\"tasks\": [\"a\"]}\n```")
	assert.True(t, ok)
	assert.Contains(t, stripped, "tasks")
}
