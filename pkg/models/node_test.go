package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_IsRoot(t *testing.T) {
	empty := ""
	parent := "8f14e45f-ceea-467f-a0c6-55a2d3e9b0a1"

	assert.True(t, (&Node{}).IsRoot())
	assert.True(t, (&Node{ParentID: &empty}).IsRoot())
	assert.False(t, (&Node{ParentID: &parent}).IsRoot())
}

func TestNode_Language(t *testing.T) {
	assert.Equal(t, DefaultLanguage, (&Node{}).Language())
	assert.Equal(t, DefaultLanguage, (&Node{Metadata: map[string]any{"language": 3}}).Language())
	assert.Equal(t, "French", (&Node{Metadata: map[string]any{"language": "French"}}).Language())
}

func TestNode_CloneIsDeep(t *testing.T) {
	orig := &Node{
		ID:               NewID(),
		FollowUpQuestion: StringPtr("why?"),
		ParentID:         StringPtr(NewID()),
		Metadata:         map[string]any{"language": "English"},
	}

	c := orig.Clone()
	require.Equal(t, orig, c)

	*c.FollowUpQuestion = "changed"
	*c.ParentID = "changed"
	c.Metadata["language"] = "German"

	assert.Equal(t, "why?", *orig.FollowUpQuestion)
	assert.NotEqual(t, "changed", *orig.ParentID)
	assert.Equal(t, "English", orig.Metadata["language"])
	assert.Nil(t, (*Node)(nil).Clone())
}

func TestSummarize_TruncatesSolutions(t *testing.T) {
	chain := []*Node{
		{Title: "a", Problem: "p", Solution: strings.Repeat("x", 1500)},
		nil,
		{Title: "b", Problem: "q", Solution: "short"},
	}

	got := Summarize(chain, 1000)
	require.Len(t, got, 2)
	assert.Len(t, got[0].Solution, 1000)
	assert.Equal(t, "short", got[1].Solution)
	assert.Equal(t, "a", got[0].Title)
}

func TestTruncate_CountsRunes(t *testing.T) {
	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "héllo", Truncate("héllo", 0))
	assert.Equal(t, "héllo", Truncate("héllo", 10))
}

func TestDefaultSubProblem(t *testing.T) {
	sp := DefaultSubProblem("Build a to-do app tracker", "")
	assert.Equal(t, "Solution", sp.Title)
	assert.Equal(t, "Build a to-do app tracker", sp.Description)
	assert.Equal(t, "Provide a complete solution", sp.Objective)
	assert.NotEmpty(t, sp.ID)

	withFollowUp := DefaultSubProblem("p", "add user authentication")
	assert.Equal(t, "add user authentication", withFollowUp.Objective)
	assert.NotEqual(t, sp.ID, withFollowUp.ID)
}

func TestStringPtrAndDeref(t *testing.T) {
	assert.Nil(t, StringPtr(""))
	assert.Equal(t, "x", Deref(StringPtr("x")))
	assert.Equal(t, "", Deref(nil))
}
