package resources

import (
	"context"
	"fmt"
	"time"

	"github.com/communitystats/statspipe/internal/repositories"
)

// Disposition is the write strategy a resource declares for its table.
type Disposition string

const (
	// DispositionMerge upserts by primary key.
	DispositionMerge Disposition = "merge"
	// DispositionReplace truncates and reloads the whole table.
	DispositionReplace Disposition = "replace"
	// DispositionAppend inserts only, deduplicated by natural key.
	DispositionAppend Disposition = "append"
)

// Watermark is the "new since last run" boundary, computed once at run start
// from the warehouse and passed into every extractor. It is never re-queried
// mid-run.
type Watermark struct {
	// TrafficByRepo is the newest traffic timestamp already stored, per
	// repository.
	TrafficByRepo map[string]time.Time
	// PriorIssues holds the comment state of already stored issues, keyed by
	// repository and issue number.
	PriorIssues map[string]map[int]repositories.PriorIssueState
}

// Batch is an extracted set of rows bound to its sink write.
type Batch struct {
	size  int
	write func() (int, error)
}

func NewBatch(size int, write func() (int, error)) *Batch {
	return &Batch{size: size, write: write}
}

// Len returns the number of extracted rows.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return b.size
}

// Write commits the batch through the resource's repository and returns the
// number of rows written.
func (b *Batch) Write() (int, error) {
	if b == nil || b.size == 0 {
		return 0, nil
	}
	return b.write()
}

// Resource is one extractable entity. Fetch may return a non-nil partial
// batch together with an error; the run controller commits whatever was
// extracted before giving up on the resource.
type Resource interface {
	Name() string
	Disposition() Disposition
	Fetch(ctx context.Context, wm *Watermark) (*Batch, error)
}

// Registry holds resources in their fixed processing order, least to most
// API-intensive, so cheap resources are durably committed before an
// expensive one can exhaust the quota.
type Registry struct {
	resources []Resource
}

func NewRegistry(resources ...Resource) *Registry {
	return &Registry{resources: resources}
}

// All returns every resource in processing order.
func (r *Registry) All() []Resource {
	return r.resources
}

// Select returns the named resources, keeping the registry order regardless
// of the order names were given in.
func (r *Registry) Select(names []string) ([]Resource, error) {
	if len(names) == 0 {
		return r.resources, nil
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	var selected []Resource
	for _, res := range r.resources {
		if wanted[res.Name()] {
			selected = append(selected, res)
			delete(wanted, res.Name())
		}
	}
	for n := range wanted {
		return nil, fmt.Errorf("unknown resource %q", n)
	}

	return selected, nil
}
