package submission

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/assignment"
)

// DefaultSaveDelay is how long typing must pause before an answer is written.
const DefaultSaveDelay = 500 * time.Millisecond

var ErrAutosaverClosed = errors.New("autosaver closed")

// Store keeps the answers of each owner (a student identifier).
type Store interface {
	PutAnswer(ctx context.Context, owner string, rec AnswerRecord) error
	DeleteAnswer(ctx context.Context, owner, key string) error
	Answers(ctx context.Context, owner string) ([]AnswerRecord, error)
}

type pending struct {
	owner string
	rec   AnswerRecord
	timer *time.Timer
}

// Autosaver debounces answer writes per owner and question: only the last
// answer given within the delay is written. Empty answers remove the saved one.
type Autosaver struct {
	store  Store
	logger core.Logger
	delay  time.Duration

	mu      sync.Mutex
	pending map[string]*pending
	writing map[*pending]chan struct{} // closed when the write is done
	closed  bool
	wg      sync.WaitGroup
}

func NewAutosaver(store Store, logger core.Logger, delay time.Duration) *Autosaver {
	if delay <= 0 {
		delay = DefaultSaveDelay
	}
	return &Autosaver{
		store:   store,
		logger:  logger,
		delay:   delay,
		pending: make(map[string]*pending),
		writing: make(map[*pending]chan struct{}),
	}
}

// Save schedules rec to be written once the owner stops typing.
func (a *Autosaver) Save(owner string, rec AnswerRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrAutosaverClosed
	}

	k := owner + "\x00" + rec.Key()
	if p, ok := a.pending[k]; ok && p.timer.Stop() {
		p.rec = rec
		p.timer.Reset(a.delay)
		return nil
	}

	p := &pending{owner: owner, rec: rec}
	a.wg.Add(1)
	p.timer = time.AfterFunc(a.delay, func() { a.fire(k, p) })
	a.pending[k] = p
	return nil
}

func (a *Autosaver) fire(k string, p *pending) {
	defer a.wg.Done()

	a.mu.Lock()
	if a.pending[k] != p { // superseded or flushed
		a.mu.Unlock()
		return
	}
	delete(a.pending, k)
	rec := p.rec
	done := make(chan struct{})
	a.writing[p] = done
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		delete(a.writing, p)
		a.mu.Unlock()
		close(done)
	}()

	if err := a.write(context.Background(), p.owner, rec); err != nil {
		a.logger.Error("autosaving answer", err, map[string]interface{}{"owner": p.owner, "key": rec.Key()})
	}
}

func (a *Autosaver) write(ctx context.Context, owner string, rec AnswerRecord) error {
	if assignment.IsEmptyAnswer(rec.Answer) {
		return a.store.DeleteAnswer(ctx, owner, rec.Key())
	}
	return a.store.PutAnswer(ctx, owner, rec)
}

// Flush writes every pending answer right away and waits for the writes already
// running, so the store holds every saved answer once it returns.
func (a *Autosaver) Flush(ctx context.Context) error {
	a.mu.Lock()
	due := make([]*pending, 0, len(a.pending))
	for k, p := range a.pending {
		// a timer that fired already finds the entry gone and leaves the write to us
		if p.timer.Stop() {
			a.wg.Done()
		}
		delete(a.pending, k)
		due = append(due, p)
	}
	running := make([]chan struct{}, 0, len(a.writing))
	for _, done := range a.writing {
		running = append(running, done)
	}
	a.mu.Unlock()

	// older answers of the same question must land first
	for _, done := range running {
		<-done
	}

	var firstErr error
	for _, p := range due {
		if err := a.write(ctx, p.owner, p.rec); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "flushing answers")
		}
	}
	return firstErr
}

// Close flushes the pending answers and waits for running writes; later saves fail.
func (a *Autosaver) Close() error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	err := a.Flush(context.Background())
	a.wg.Wait()
	return err
}
