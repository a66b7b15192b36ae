package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ─────────────────────────────────────────────────────────────
// docGuard: which document operations may overlap
// ─────────────────────────────────────────────────────────────

type operation string

const (
	opSave    operation = "save"
	opMigrate operation = "migrate"
	opRun     operation = "load"
)

// conflicts lists, per operation, the held operations that refuse it.
// A load reads the session it was given, so saving alongside it is fine;
// a migration rewrites the stored bytes and excludes everything.
var conflicts = map[operation][]operation{
	opSave:    {opSave, opMigrate},
	opMigrate: {opSave, opMigrate, opRun},
	opRun:     {opRun, opMigrate},
}

// ErrBusy is matched by every BusyError.
var ErrBusy = errors.New("document busy")

// BusyError reports an operation refused because a conflicting one holds
// the document.
type BusyError struct {
	Key       string
	Requested string
	Holder    string
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("%s of %s refused: %s in progress", e.Requested, e.Key, e.Holder)
}

func (e *BusyError) Is(target error) bool { return target == ErrBusy }

// docGuard refuses a conflicting operation instead of queueing it, and
// lets shutdown wait for every current holder.
type docGuard struct {
	key  string
	mu   sync.Mutex
	held map[operation]bool
	wg   sync.WaitGroup
}

// acquire marks op as held. The returned release may be called more than once.
func (g *docGuard) acquire(op operation) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, other := range conflicts[op] {
		if g.held[other] {
			return nil, &BusyError{Key: g.key, Requested: string(op), Holder: string(other)}
		}
	}
	if g.held == nil {
		g.held = make(map[operation]bool)
	}
	g.held[op] = true
	g.wg.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, op)
			g.mu.Unlock()
			g.wg.Done()
		})
	}, nil
}

// holding reports whether any of ops is currently held.
func (g *docGuard) holding(ops ...operation) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, op := range ops {
		if g.held[op] {
			return true
		}
	}
	return false
}

// waitAll blocks until every holder has released or ctx is done.
func (g *docGuard) waitAll(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
