package engine

import (
	"dashboard/internal/models"
)

// View is an ordered subset of a Store's rows. It holds row indices into the
// store, never copies of the data.
type View struct {
	store   *Store
	indices []int // nil means every row
}

// All returns a view over every row of the store.
func (s *Store) All() *View { return &View{store: s} }

// Len returns the number of rows in the view.
func (v *View) Len() int {
	if v.indices == nil {
		return v.store.Len()
	}
	return len(v.indices)
}

// Row materializes the i-th row of the view.
func (v *View) Row(i int) models.Row { return v.store.Row(v.at(i)) }

// Rows materializes the whole view.
func (v *View) Rows() []models.Row {
	out := make([]models.Row, v.Len())
	for i := range out {
		out[i] = v.Row(i)
	}
	return out
}

func (v *View) at(i int) int {
	if v.indices == nil {
		return i
	}
	return v.indices[i]
}

// Apply returns the rows matching every active filter, in store order.
// Filter values that never occur in the data yield an empty view, not an error.
func Apply(store *Store, filters models.FilterSet) (*View, error) {
	type constraint struct {
		col int
		id  int32
	}

	var cs []constraint
	for f, val := range filters.Active() {
		idx := f.Index()
		if idx < 0 {
			return nil, &models.UnknownFieldError{Name: string(f)}
		}
		id, ok := store.id(idx, val)
		if !ok {
			return &View{store: store, indices: []int{}}, nil
		}
		cs = append(cs, constraint{col: idx, id: id})
	}
	if len(cs) == 0 {
		return store.All(), nil
	}

	// Single pass, compare dictionary ids instead of strings
	indices := make([]int, 0, store.Len())
	for i := 0; i < store.Len(); i++ {
		pass := true
		for _, c := range cs {
			if store.IDs[c.col][i] != c.id {
				pass = false
				break
			}
		}
		if pass {
			indices = append(indices, i)
		}
	}
	return &View{store: store, indices: indices}, nil
}
