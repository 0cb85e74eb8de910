package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filegate/filegate/store"
)

func TestIssueVerify(t *testing.T) {
	g := &Gate{Codes: NewMemoryCodes()}
	code, err := g.Issue("obj1")
	require.NoError(t, err)
	assert.Len(t, code, 2*DefaultCodeLength)

	assert.True(t, g.Verify("obj1", code))
	assert.False(t, g.Verify("obj1", "anything else"))
	assert.False(t, g.Verify("obj1", ""))
	assert.False(t, g.Verify("other", code))
}

func TestIssueCustomLength(t *testing.T) {
	g := &Gate{Codes: NewMemoryCodes(), Length: 4}
	code, err := g.Issue("obj1")
	require.NoError(t, err)
	assert.Len(t, code, 8)
}

func TestIssueDistinctCodes(t *testing.T) {
	g := &Gate{Codes: NewMemoryCodes()}
	a, err := g.Issue("obj1")
	require.NoError(t, err)
	b, err := g.Issue("obj2")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestRecordCodes(t *testing.T) {
	g := &Gate{Codes: NewRecordCodes(store.NewMemory())}
	code, err := g.Issue("obj1")
	require.NoError(t, err)
	assert.True(t, g.Verify("obj1", code))
	assert.False(t, g.Verify("missing", code))

	// issuing again overwrites the binding
	code2, err := g.Issue("obj1")
	require.NoError(t, err)
	assert.False(t, g.Verify("obj1", code))
	assert.True(t, g.Verify("obj1", code2))
}
