package domain

import (
	"encoding/json"
	"slices"
)

// Keypoint is a topic node of the question bank's catalog tree
type Keypoint struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Count       int        `json:"count,omitempty"`
	QuestionIDs []int64    `json:"questionIds,omitempty"`
	Children    []Keypoint `json:"children,omitempty"`
}

// Catalog is the keypoint tree as returned by the catalog endpoint
type Catalog []Keypoint

// IDSet is a set of question identifiers
type IDSet map[int64]struct{}

// Add inserts ids into the set
func (s IDSet) Add(ids ...int64) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

// Has reports whether id is in the set
func (s IDSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the ids in ascending order
func (s IDSet) Sorted() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Question is the full detail payload of one question
type Question struct {
	ID            int64         `json:"id"`
	Content       string        `json:"content"`
	Material      *Material     `json:"material,omitempty"`
	Accessories   []Accessory   `json:"accessories,omitempty"`
	CorrectAnswer *Answer       `json:"correctAnswer,omitempty"`
	QuestionMeta  *QuestionMeta `json:"questionMeta,omitempty"`
	Difficulty    json.Number   `json:"difficulty"`
	Solution      string        `json:"solution"`
	Keypoints     []KeypointRef `json:"keypoints,omitempty"`
	Source        string        `json:"source"`

	// Raw is the payload exactly as the service returned it
	Raw json.RawMessage `json:"-"`
}

// Material is shared reading material attached to a question
type Material struct {
	Content string `json:"content"`
}

// Accessory carries the answer options
type Accessory struct {
	Options []string `json:"options"`
}

// Answer is a choice index serialized as a string ("0".."3")
type Answer struct {
	Choice string `json:"choice"`
}

// QuestionMeta holds answer statistics
type QuestionMeta struct {
	CorrectRatio    float64 `json:"correctRatio"`
	MostWrongAnswer *Answer `json:"mostWrongAnswer,omitempty"`
}

// KeypointRef names a keypoint a question belongs to
type KeypointRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Payload returns the serialized form persisted for the question
func (q *Question) Payload() ([]byte, error) {
	if len(q.Raw) > 0 {
		return q.Raw, nil
	}
	return json.Marshal(q)
}

// DecodeQuestion parses a detail payload, keeping the raw bytes
func DecodeQuestion(data []byte) (*Question, error) {
	var q Question
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, err
	}
	q.Raw = append(json.RawMessage(nil), data...)
	return &q, nil
}
