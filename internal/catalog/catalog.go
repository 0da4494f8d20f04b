package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pbaille/tiku/internal/domain"
)

// Parse decodes a serialized keypoint tree. Empty input is an empty catalog.
func Parse(data []byte) (domain.Catalog, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return domain.Catalog{}, nil
	}

	var c domain.Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if c == nil {
		c = domain.Catalog{}
	}
	return c, nil
}

// Flatten collects every question id attached to any node of the tree
func Flatten(c domain.Catalog) domain.IDSet {
	set := make(domain.IDSet)

	stack := make([]*domain.Keypoint, 0, len(c))
	for i := range c {
		stack = append(stack, &c[i])
	}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		set.Add(n.QuestionIDs...)
		for i := range n.Children {
			stack = append(stack, &n.Children[i])
		}
	}

	return set
}

// Diff returns the ids present in next but not in prev, ascending.
// Only id sets are compared; tree shape is irrelevant.
func Diff(prev, next domain.Catalog) []int64 {
	seen := Flatten(prev)

	fresh := make(domain.IDSet)
	for id := range Flatten(next) {
		if !seen.Has(id) {
			fresh.Add(id)
		}
	}

	return fresh.Sorted()
}
