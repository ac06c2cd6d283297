package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lockFor(label, content, priority string, concepts []string, lastAccess *time.Time) *ContextLock {
	return &ContextLock{
		Label:       label,
		Version:     Version{Major: 1, Minor: 0},
		Content:     content,
		Preview:     MakePreview(content),
		Priority:    priority,
		KeyConcepts: concepts,
		LastAccess:  lastAccess,
	}
}

func TestScoreLock_Contributions(t *testing.T) {
	lock := lockFor("deploy", "the deploy steps", PriorityReference, []string{"deploy"}, nil)

	// Exact label + concept + content + preview all match.
	assert.InDelta(t, 1.0+0.7+0.5+0.3, scoreLock(lock, "deploy"), 1e-9)

	// Content and preview only.
	assert.InDelta(t, 0.5+0.3, scoreLock(lock, "steps"), 1e-9)

	// No match at all.
	assert.Zero(t, scoreLock(lock, "kubernetes"))
}

func TestRankLocks_Ordering(t *testing.T) {
	locks := []*ContextLock{
		lockFor("notes", "auth mentioned in passing here somewhere", PriorityReference, nil, nil),
		lockFor("auth", "how auth works", PriorityImportant, []string{"auth"}, nil),
		lockFor("unrelated", "nothing relevant", PriorityReference, nil, nil),
	}

	hits := rankLocks(locks, "auth", nil)
	require.Len(t, hits, 2)
	assert.Equal(t, "auth", hits[0].Label)
	assert.Equal(t, "notes", hits[1].Label)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestRankLocks_TieBreakByLastAccess(t *testing.T) {
	older := time.Now().Add(-time.Hour)
	newer := time.Now()
	locks := []*ContextLock{
		lockFor("a_notes", "token rotation", PriorityReference, nil, &older),
		lockFor("b_notes", "token rotation", PriorityReference, nil, &newer),
		lockFor("c_notes", "token rotation", PriorityReference, nil, nil),
	}

	hits := rankLocks(locks, "token", nil)
	require.Len(t, hits, 3)
	assert.Equal(t, "b_notes", hits[0].Label)
	assert.Equal(t, "a_notes", hits[1].Label)
	assert.Equal(t, "c_notes", hits[2].Label)
}

func TestRankLocks_TagFilter(t *testing.T) {
	tagged := lockFor("tagged", "shared wording", PriorityReference, nil, nil)
	tagged.Metadata = map[string]interface{}{"tags": []interface{}{"Infra"}}
	untagged := lockFor("untagged", "shared wording", PriorityReference, nil, nil)

	hits := rankLocks([]*ContextLock{tagged, untagged}, "wording", []string{"infra"})
	require.Len(t, hits, 1)
	assert.Equal(t, "tagged", hits[0].Label)
}

func TestMergeHits(t *testing.T) {
	vector := []SearchHit{{Label: "a", Version: "1.0", Score: 0.9}}
	keyword := []SearchHit{
		{Label: "a", Version: "1.0", Score: 1.0},
		{Label: "b", Version: "1.0", Score: 0.8},
	}

	merged := mergeHits(vector, keyword)
	require.Len(t, merged, 2)
	assert.Equal(t, "a", merged[0].Label)
	assert.InDelta(t, 0.9, merged[0].Score, 1e-9)
	assert.Equal(t, "b", merged[1].Label)
	assert.InDelta(t, 0.4, merged[1].Score, 1e-9)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, cosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Zero(t, cosineSimilarity(nil, nil))
}
