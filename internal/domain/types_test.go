package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDSet(t *testing.T) {
	s := make(IDSet)
	s.Add(3, 1, 3, 2)

	assert.Len(t, s, 3)
	assert.True(t, s.Has(1))
	assert.False(t, s.Has(4))
	assert.Equal(t, []int64{1, 2, 3}, s.Sorted())
}

func TestDecodeQuestion(t *testing.T) {
	raw := []byte(`{"id":12,"content":"c","correctAnswer":{"choice":"1"},"questionMeta":{"correctRatio":55.5,"mostWrongAnswer":{"choice":"3"}},"keypoints":[{"id":1,"name":"图形推理"}],"unknown":true}`)

	q, err := DecodeQuestion(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(12), q.ID)
	assert.Equal(t, "1", q.CorrectAnswer.Choice)
	assert.Equal(t, "3", q.QuestionMeta.MostWrongAnswer.Choice)
	assert.Equal(t, "图形推理", q.Keypoints[0].Name)

	payload, err := q.Payload()
	require.NoError(t, err)
	assert.Equal(t, string(raw), string(payload))

	_, err = DecodeQuestion([]byte(`[]`))
	assert.Error(t, err)
}

func TestPayload_WithoutRaw(t *testing.T) {
	q := Question{ID: 3, Content: "x"}
	payload, err := q.Payload()
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":3,"content":"x","difficulty":0,"solution":"","source":""}`, string(payload))
}
