package engine

import (
	"dashboard/internal/models"
)

type cell struct {
	total int64
	seen  bool
}

// Aggregate groups the view's rows by primary (and secondary, when non-empty)
// and sums their counts. Groups come out in first-appearance order; only
// combinations present in the view are returned.
func Aggregate(v *View, primary, secondary models.Field) (models.AggregationResult, error) {
	pIdx := primary.Index()
	if pIdx < 0 {
		return models.AggregationResult{}, &models.UnknownFieldError{Name: string(primary)}
	}
	if secondary == primary {
		secondary = ""
	}
	sIdx := -1
	if secondary != "" {
		if sIdx = secondary.Index(); sIdx < 0 {
			return models.AggregationResult{}, &models.UnknownFieldError{Name: string(secondary)}
		}
	}

	result := models.AggregationResult{
		Primary:   primary,
		Secondary: secondary,
		Groups:    make([]models.Group, 0),
	}
	if v.Len() == 0 {
		return result, nil
	}

	// 1. Dimensions
	s := v.store
	numPrimary := len(s.Dicts[pIdx])
	numSecondary := 1
	if sIdx >= 0 {
		numSecondary = len(s.Dicts[sIdx])
	}

	// THE MATRIX: Flattened [Primary][Secondary] -> [Primary * numSecondary + Secondary]
	matrix := make([]cell, numPrimary*numSecondary)
	order := make([]int, 0)

	idsP := s.IDs[pIdx]
	var idsS []int32
	if sIdx >= 0 {
		idsS = s.IDs[sIdx]
	}
	counts := s.Counts

	for j := 0; j < v.Len(); j++ {
		row := v.at(j)
		idx := int(idsP[row]) * numSecondary
		if idsS != nil {
			idx += int(idsS[row])
		}
		c := &matrix[idx]
		if !c.seen {
			c.seen = true
			order = append(order, idx)
		}
		c.total += counts[row]
	}

	// 2. Unpack Matrix in first-appearance order
	for _, idx := range order {
		g := models.Group{
			Key:   s.Dicts[pIdx][idx/numSecondary],
			Total: matrix[idx].total,
		}
		if sIdx >= 0 {
			g.Secondary = s.Dicts[sIdx][idx%numSecondary]
		}
		result.Groups = append(result.Groups, g)
	}
	return result, nil
}
