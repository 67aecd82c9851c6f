package engine

import (
	"runtime"
	"sort"
	"strconv"
	"strings"

	"dashboard/internal/models"

	"golang.org/x/sync/errgroup"
)

// minChunk keeps tiny datasets on a single worker.
const minChunk = 4096

type localDicts struct {
	maps   [numFields]map[string]int32
	lists  [numFields][]string
	ids    [numFields][]int32
	counts []int64
	first  *models.SchemaError
	drops  int
}

// Load validates raw rows and builds the column store.
//
// Rows with a null (missing or blank) dimension are dropped and counted,
// whatever their count holds. Otherwise a missing, non-integer or negative
// count fails the whole load with a
// *models.SchemaError whose Row is the 0-based position in rows.
func Load(rows []models.RawRow) (*Store, error) {
	numWorkers := runtime.NumCPU()
	if n := (len(rows) + minChunk - 1) / minChunk; n < numWorkers {
		numWorkers = n
	}
	if numWorkers < 1 {
		numWorkers = 1
	}
	chunkSize := len(rows) / numWorkers

	// A. Parallel parse into worker-local dictionaries
	workerDicts := make([]*localDicts, numWorkers)
	var g errgroup.Group
	for w := 0; w < numWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if w == numWorkers-1 {
			end = len(rows)
		}
		ld := &localDicts{counts: make([]int64, 0, end-start)}
		for f := 0; f < numFields; f++ {
			ld.maps[f] = make(map[string]int32)
			ld.ids[f] = make([]int32, 0, end-start)
		}
		workerDicts[w] = ld

		g.Go(func() error {
			parseChunk(ld, rows, start, end)
			return nil
		})
	}
	_ = g.Wait()

	// Report the earliest bad row, independent of worker scheduling.
	for _, ld := range workerDicts {
		if ld.first != nil {
			return nil, ld.first
		}
	}

	// B. Allocate Store ONCE
	offsets := make([]int, numWorkers)
	total := 0
	for w, ld := range workerDicts {
		offsets[w] = total
		total += len(ld.counts)
	}

	store := &Store{Counts: make([]int64, 0, total)}
	for f := 0; f < numFields; f++ {
		store.IDs[f] = make([]int32, total)
	}
	for _, ld := range workerDicts {
		store.Counts = append(store.Counts, ld.counts...)
		store.dropped += ld.drops
	}

	// C. Merge Dictionaries (one goroutine per field)
	var merge errgroup.Group
	for f := 0; f < numFields; f++ {
		merge.Go(func() error {
			mergeDict(store, workerDicts, offsets, f)
			return nil
		})
	}
	_ = merge.Wait()

	return store, nil
}

func parseChunk(ld *localDicts, rows []models.RawRow, start, end int) {
	for i := start; i < end; i++ {
		raw := rows[i]

		var vals [numFields]string
		null := false
		for f, field := range models.Fields {
			v := strings.TrimSpace(raw[string(field)])
			if v == "" {
				null = true
				break
			}
			vals[f] = v
		}

		// Null rows are excluded before their count is looked at.
		if null {
			ld.drops++
			continue
		}
		count, serr := parseCount(raw, i)
		if serr != nil {
			if ld.first == nil {
				ld.first = serr
			}
			return
		}

		for f := 0; f < numFields; f++ {
			id, ok := ld.maps[f][vals[f]]
			if !ok {
				id = int32(len(ld.lists[f]))
				ld.lists[f] = append(ld.lists[f], vals[f])
				ld.maps[f][vals[f]] = id
			}
			ld.ids[f] = append(ld.ids[f], id)
		}
		ld.counts = append(ld.counts, count)
	}
}

func parseCount(raw models.RawRow, row int) (int64, *models.SchemaError) {
	v, ok := raw[models.CountColumn]
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return 0, &models.SchemaError{Row: row, Field: models.CountColumn, Reason: "missing"}
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, &models.SchemaError{Row: row, Field: models.CountColumn, Value: v, Reason: "not an integer"}
	}
	if n < 0 {
		return 0, &models.SchemaError{Row: row, Field: models.CountColumn, Value: v, Reason: "negative count"}
	}
	return n, nil
}

// mergeDict remaps worker-local ids onto one global dictionary for field f.
// Workers are merged in order, so the global dictionary keeps first-appearance order.
func mergeDict(store *Store, workerDicts []*localDicts, offsets []int, f int) {
	gMap := make(map[string]int32)
	var global []string

	for w, ld := range workerDicts {
		remap := make([]int32, len(ld.lists[f]))
		for lid, s := range ld.lists[f] {
			gid, exists := gMap[s]
			if !exists {
				gid = int32(len(global))
				global = append(global, s)
				gMap[s] = gid
			}
			remap[lid] = gid
		}
		dest := store.IDs[f][offsets[w] : offsets[w]+len(ld.ids[f])]
		for k, id := range ld.ids[f] {
			dest[k] = remap[id]
		}
	}

	sorted := make([]string, len(global))
	copy(sorted, global)
	sort.Strings(sorted)

	store.Dicts[f] = global
	store.distinct[f] = sorted
	store.lookup[f] = gMap
}
