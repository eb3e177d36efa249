package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	out, err := Render("Answer using {{document}} for {{audience}}.", map[string]string{
		"document": "the runbook",
		"audience": "new hires",
	})
	require.NoError(t, err)
	assert.Equal(t, "Answer using the runbook for new hires.", out)
}

func TestRenderMissingVariable(t *testing.T) {
	_, err := Render("Hello {{name}}, meet {{other}}.", map[string]string{"name": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "other")
}

func TestRenderNoVariables(t *testing.T) {
	out, err := Render("plain text", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text", out)
}

func TestExtractVariables(t *testing.T) {
	vars := ExtractVariables("{{a}} and {{b}} and {{a}} again")
	assert.Equal(t, []string{"a", "b"}, vars)

	assert.Empty(t, ExtractVariables("nothing here"))
}
