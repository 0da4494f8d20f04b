package catalog

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/tiku/internal/domain"
)

func tree(nodes ...domain.Keypoint) domain.Catalog { return domain.Catalog(nodes) }

func TestFlatten_Nested(t *testing.T) {
	c := tree(
		domain.Keypoint{Name: "a", QuestionIDs: []int64{1, 2}, Children: []domain.Keypoint{
			{Name: "a1", QuestionIDs: []int64{3}},
			{Name: "a2", Children: []domain.Keypoint{{Name: "a2x", QuestionIDs: []int64{4, 1}}}},
		}},
		domain.Keypoint{Name: "b"},
	)

	got := Flatten(c).Sorted()
	if diff := cmp.Diff([]int64{1, 2, 3, 4}, got); diff != "" {
		t.Errorf("flatten mismatch (-want +got):\n%s", diff)
	}
}

func TestFlatten_Empty(t *testing.T) {
	assert.Empty(t, Flatten(nil))
	assert.Empty(t, Flatten(domain.Catalog{}))
}

func TestDiff_NewIDs(t *testing.T) {
	prev := tree(domain.Keypoint{Name: "topicA", QuestionIDs: []int64{1, 2}})
	next := tree(
		domain.Keypoint{Name: "topicA", QuestionIDs: []int64{1, 2, 3}},
		domain.Keypoint{Name: "topicB", QuestionIDs: []int64{4}},
	)

	assert.Equal(t, []int64{3, 4}, Diff(prev, next))
}

func TestDiff_SameCatalog(t *testing.T) {
	c := tree(domain.Keypoint{Name: "topicA", QuestionIDs: []int64{5, 6}})
	assert.Empty(t, Diff(c, c))
}

func TestDiff_EmptyPrevious(t *testing.T) {
	next := tree(
		domain.Keypoint{Name: "x", QuestionIDs: []int64{9, 7}},
		domain.Keypoint{Name: "y", Children: []domain.Keypoint{{QuestionIDs: []int64{8}}}},
	)
	assert.Equal(t, Flatten(next).Sorted(), Diff(nil, next))
}

func TestDiff_EmptyNext(t *testing.T) {
	prev := tree(domain.Keypoint{QuestionIDs: []int64{1}})
	assert.Empty(t, Diff(prev, nil))
}

func TestDiff_ShapeIgnored(t *testing.T) {
	prev := tree(domain.Keypoint{Name: "flat", QuestionIDs: []int64{1, 2, 3}})
	next := tree(domain.Keypoint{Name: "root", Children: []domain.Keypoint{
		{Name: "l", QuestionIDs: []int64{3}},
		{Name: "r", QuestionIDs: []int64{2, 1}},
	}})
	assert.Empty(t, Diff(prev, next))
}

func TestDiff_SubsetAndDisjoint(t *testing.T) {
	prev := tree(domain.Keypoint{QuestionIDs: []int64{1, 3, 5, 7}})
	next := tree(domain.Keypoint{QuestionIDs: []int64{2, 3, 4, 5}}, domain.Keypoint{QuestionIDs: []int64{10}})

	got := Diff(prev, next)
	nextIDs, prevIDs := Flatten(next), Flatten(prev)
	for _, id := range got {
		assert.True(t, nextIDs.Has(id), "id %d not in next", id)
		assert.False(t, prevIDs.Has(id), "id %d in prev", id)
	}
	assert.Equal(t, []int64{2, 4, 10}, got)
}

func TestParse(t *testing.T) {
	c, err := Parse([]byte(`[{"id":1,"name":"言语","questionIds":[11,12],"children":[{"id":2,"name":"片段","questionIds":null}]}]`))
	require.NoError(t, err)
	require.Len(t, c, 1)
	assert.Equal(t, "言语", c[0].Name)
	assert.Equal(t, []int64{11, 12}, Flatten(c).Sorted())

	empty, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	null, err := Parse([]byte("null"))
	require.NoError(t, err)
	assert.NotNil(t, null)

	_, err = Parse([]byte(`{"not":"a list"}`))
	assert.Error(t, err)
}
