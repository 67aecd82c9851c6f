package dashboard

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"dashboard/internal/metrics"
	"dashboard/internal/models"

	"golang.org/x/sync/errgroup"
)

// PublishFunc receives a recomputed chart for an output.
type PublishFunc func(output string, spec models.ChartSpec)

type bindingState struct {
	Binding
	last     Inputs // dependency values at the last successful compute
	computed bool
}

// Dispatcher owns the current input values of one dashboard and recomputes
// the bindings whose inputs changed.
type Dispatcher struct {
	log      *slog.Logger
	publish  PublishFunc
	mu       sync.Mutex
	current  Inputs
	bindings []*bindingState
}

// NewDispatcher creates a dispatcher. Nothing is computed until the first Update.
func NewDispatcher(log *slog.Logger, bindings []Binding, publish PublishFunc) *Dispatcher {
	d := &Dispatcher{
		log:     log,
		publish: publish,
		current: make(Inputs),
	}
	for _, b := range bindings {
		d.bindings = append(d.bindings, &bindingState{Binding: b})
	}
	return d
}

// Inputs returns a copy of the current input values.
func (d *Dispatcher) Inputs() Inputs {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current.Clone()
}

// Update replaces the input values and recomputes every binding whose
// dependencies differ from its last successful compute. Bindings never read
// each other's outputs, so they run in parallel. Each binding's outputs are
// published only after it has fully succeeded. The names of the published
// outputs are returned in binding order.
//
// Inputs naming an unknown chart type or field are rejected and the current
// values are kept.
func (d *Dispatcher) Update(next Inputs) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.update(next)
}

// Apply merges changes into the current inputs (nil clears an input) and
// updates, all under one lock so concurrent callers never overwrite each
// other's changes.
func (d *Dispatcher) Apply(changes map[Input]*string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.update(d.current.Merge(changes))
}

func (d *Dispatcher) update(next Inputs) ([]string, error) {
	if err := next.Validate(); err != nil {
		return nil, err
	}
	d.current = next.Clone()

	var affected []*bindingState
	for _, b := range d.bindings {
		if !b.computed || changed(b.last, d.current, b.Inputs) {
			affected = append(affected, b)
		}
	}
	if len(affected) == 0 {
		return nil, nil
	}

	results := make([]map[string]models.ChartSpec, len(affected))
	errs := make([]error, len(affected))
	var g errgroup.Group
	for i, b := range affected {
		g.Go(func() error {
			start := time.Now()
			results[i], errs[i] = b.Compute(d.current)

			status := "ok"
			if errs[i] != nil {
				status = "error"
			}
			metrics.BindingRecomputeTotal.WithLabelValues(b.Name, status).Inc()
			metrics.BindingRecomputeDuration.WithLabelValues(b.Name).Observe(time.Since(start).Seconds())
			return nil
		})
	}
	_ = g.Wait()

	var published []string
	var firstErr error
	for i, b := range affected {
		if errs[i] != nil {
			d.log.Warn("binding recompute failed", "binding", b.Name, "error", errs[i])
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", b.Name, errs[i])
			}
			continue
		}
		b.last = d.current.Clone()
		b.computed = true
		outs := make([]string, 0, len(results[i]))
		for out := range results[i] {
			outs = append(outs, out)
		}
		sort.Strings(outs)
		for _, out := range outs {
			d.publish(out, results[i][out])
		}
		published = append(published, outs...)
		d.log.Debug("binding recomputed", "binding", b.Name, "outputs", len(results[i]))
	}
	return published, firstErr
}
