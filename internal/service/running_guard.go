package service

import (
	"context"
	"slices"
	"sync"

	"github.com/samber/lo"
)

// jobSet tracks which import jobs are mid-run so a manual run, a cron tick
// and a file event never overlap for the same job. The zero value is ready.
type jobSet struct {
	mu     sync.Mutex
	active map[string]struct{}
	wg     sync.WaitGroup
}

// acquire claims id. When ok is false the job is already running and
// release is nil.
func (j *jobSet) acquire(id string) (release func(), ok bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, busy := j.active[id]; busy {
		return nil, false
	}
	if j.active == nil {
		j.active = make(map[string]struct{})
	}
	j.active[id] = struct{}{}
	j.wg.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			j.mu.Lock()
			delete(j.active, id)
			j.mu.Unlock()
			j.wg.Done()
		})
	}, true
}

// ids returns the running job ids in sorted order.
func (j *jobSet) ids() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	ids := lo.Keys(j.active)
	slices.Sort(ids)
	return ids
}

// drain waits for every running job to release. It returns ctx.Err() if
// the context ends first.
func (j *jobSet) drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
