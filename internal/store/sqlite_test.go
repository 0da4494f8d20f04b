package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/tiku/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInit_Idempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.SetConfig(ctx, "k", "v"))
	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.Close())

	s, err = New(path)
	require.NoError(t, err)
	defer s.Close()

	v, ok, err := s.GetConfig(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestConfig_Absent(t *testing.T) {
	s := newTestStore(t)

	v, ok, err := s.GetConfig(context.Background(), "keypoint-tree")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestConfig_Upsert(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SetConfig(ctx, "keypoint-tree", "[1]"))
	v, ok, err := s.GetConfig(ctx, "keypoint-tree")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "[1]", v)

	require.NoError(t, s.SetConfig(ctx, "keypoint-tree", "[2]"))
	v, _, err = s.GetConfig(ctx, "keypoint-tree")
	require.NoError(t, err)
	assert.Equal(t, "[2]", v)

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM config").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestConfig_EmptyValueIsPresent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SetConfig(ctx, "k", ""))
	_, ok, err := s.GetConfig(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInsertQuestion_Duplicate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := domain.DecodeQuestion([]byte(`{"id":42,"content":"<p>first</p>"}`))
	require.NoError(t, err)
	require.NoError(t, s.InsertQuestion(ctx, first))

	second := &domain.Question{ID: 42, Content: "second"}
	err = s.InsertQuestion(ctx, second)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicateID)

	got, err := s.GetQuestion(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "<p>first</p>", got.Content)
	assert.JSONEq(t, `{"id":42,"content":"<p>first</p>"}`, string(got.Raw))

	n, err := s.CountQuestions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInsertQuestion_WithoutRaw(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	q := &domain.Question{ID: 7, Content: "c", Source: "2023 国考", Difficulty: "0.6"}
	require.NoError(t, s.InsertQuestion(ctx, q))

	got, err := s.GetQuestion(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "2023 国考", got.Source)
	assert.Equal(t, "0.6", got.Difficulty.String())
}

func TestGetQuestion_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetQuestion(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListQuestions_InsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, id := range []int64{30, 10, 20} {
		require.NoError(t, s.InsertQuestion(ctx, &domain.Question{ID: id}))
	}

	all, err := s.ListQuestions(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{30, 10, 20}, []int64{all[0].ID, all[1].ID, all[2].ID})

	page, err := s.ListQuestions(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(10), page[0].ID)

	ids, err := s.QuestionIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20, 30}, ids.Sorted())
}
