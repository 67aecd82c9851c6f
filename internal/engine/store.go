package engine

import (
	"dashboard/internal/models"
)

const numFields = 5

// Store holds the dataset in Struct-of-Arrays format. It is built once by
// Load and never mutated, so it can be shared by any number of readers.
type Store struct {
	// Data Column
	Counts []int64

	// Dictionary Encoded IDs (0..N), indexed by models.Field.Index()
	IDs [numFields][]int32

	// Dictionaries (ID -> String), in first-appearance order
	Dicts [numFields][]string

	// Sorted distinct values per field, for filter options
	distinct [numFields][]string
	lookup   [numFields]map[string]int32
	dropped  int
}

// Len returns the number of rows.
func (s *Store) Len() int { return len(s.Counts) }

// Dropped returns how many input rows were skipped for a null dimension.
func (s *Store) Dropped() int { return s.dropped }

// Row materializes row i.
func (s *Store) Row(i int) models.Row {
	return models.Row{
		Year:      s.Dicts[0][s.IDs[0][i]],
		Age:       s.Dicts[1][s.IDs[1][i]],
		Ethnicity: s.Dicts[2][s.IDs[2][i]],
		Sex:       s.Dicts[3][s.IDs[3][i]],
		Area:      s.Dicts[4][s.IDs[4][i]],
		Count:     s.Counts[i],
	}
}

// DistinctValues returns the sorted distinct values of a field. The slice is
// shared; callers must not modify it.
func (s *Store) DistinctValues(f models.Field) ([]string, error) {
	idx := f.Index()
	if idx < 0 {
		return nil, &models.UnknownFieldError{Name: string(f)}
	}
	return s.distinct[idx], nil
}

// id returns the dictionary id of value in field column idx.
func (s *Store) id(idx int, value string) (int32, bool) {
	id, ok := s.lookup[idx][value]
	return id, ok
}
