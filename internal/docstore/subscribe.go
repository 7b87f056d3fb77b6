package docstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fitpro/fitsync/internal/domain"
)

type subscription struct {
	path       string
	onSnapshot domain.SnapshotFunc
	onError    domain.ErrorFunc
	queue      *deliveryQueue

	// queued is the newest revision handed to the queue. Guarded by Store.commitMu.
	queued domain.Revision

	// mu is held for the duration of every callback
	mu        sync.Mutex
	cancelled bool
	lastRev   domain.Revision
}

// Subscribe delivers the current document (if it exists) and then one snapshot
// per commit to path. onError is called at most once, after which the
// subscription is dead.
func (s *Store) Subscribe(ctx context.Context, path string, onSnapshot domain.SnapshotFunc, onError domain.ErrorFunc) (domain.Unsubscribe, error) {
	if err := s.check(path); err != nil {
		return nil, err
	}

	sub := &subscription{
		path:       path,
		onSnapshot: onSnapshot,
		onError:    onError,
		queue:      newDeliveryQueue(),
	}

	// Holding commitMu means no commit can land between the initial read
	// and registration.
	s.commitMu.Lock()
	doc, err := readDoc(ctx, s.db, path)
	switch {
	case errors.Is(err, domain.ErrDocumentNotFound):
	case err != nil:
		s.commitMu.Unlock()
		return nil, s.wrapDBError(err)
	default:
		sub.queued = doc.Revision
		sub.queue.Enqueue(delivery{doc: doc})
	}

	s.subsMu.Lock()
	set, ok := s.subs[path]
	if !ok {
		set = make(map[*subscription]struct{})
		s.subs[path] = set
	}
	set[sub] = struct{}{}
	s.subsMu.Unlock()
	s.commitMu.Unlock()

	go sub.run()
	s.startPolling()

	s.logger.Debug("subscribed", "path", path)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.removeSub(sub)
			sub.cancel()
		})
	}, nil
}

func (s *Store) removeSub(sub *subscription) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	if set, ok := s.subs[sub.path]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(s.subs, sub.path)
		}
	}
}

// notify must be called with commitMu held.
func (s *Store) notify(doc *domain.Document) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for sub := range s.subs[doc.Path] {
		if doc.Revision <= sub.queued {
			continue
		}
		sub.queued = doc.Revision
		sub.queue.Enqueue(delivery{doc: cloneDoc(doc)})
	}
}

// failAll terminates every active subscription with err.
func (s *Store) failAll(err error) {
	s.commitMu.Lock()
	s.subsMu.Lock()
	subs := s.subs
	s.subs = make(map[string]map[*subscription]struct{})
	s.subsMu.Unlock()
	s.commitMu.Unlock()

	for _, set := range subs {
		for sub := range set {
			sub.queue.Enqueue(delivery{err: err})
		}
	}
}

// startPolling launches the cross-process revision poller once.
func (s *Store) startPolling() {
	if s.opts.PollInterval <= 0 {
		return
	}
	s.pollOnce.Do(func() {
		s.wg.Add(1)
		go s.poll()
	})
}

func (s *Store) poll() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if !s.available.Load() {
				continue
			}
			s.pollOnceNow()
		}
	}
}

// pollOnceNow pushes documents whose stored revision is ahead of what their
// subscribers were last handed.
func (s *Store) pollOnceNow() {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.subsMu.Lock()
	paths := make([]string, 0, len(s.subs))
	for path := range s.subs {
		paths = append(paths, path)
	}
	s.subsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.PollInterval)
	defer cancel()

	for _, path := range paths {
		doc, err := readDoc(ctx, s.db, path)
		if err != nil {
			if !errors.Is(err, domain.ErrDocumentNotFound) {
				s.logger.Debug("poll read failed", "path", path, "error", err)
			}
			continue
		}
		s.notify(doc)
	}
}

func (sub *subscription) cancel() {
	sub.mu.Lock()
	sub.cancelled = true
	sub.mu.Unlock()
	sub.queue.Close()
}

func (sub *subscription) run() {
	for {
		d, ok, closed := sub.queue.TryDequeue()
		if closed {
			return
		}
		if !ok {
			<-sub.queue.Wait()
			continue
		}
		if !sub.deliver(d) {
			return
		}
	}
}

// deliver reports whether the subscription is still alive.
func (sub *subscription) deliver(d delivery) bool {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	if sub.cancelled {
		return false
	}
	if d.err != nil {
		sub.cancelled = true
		if sub.onError != nil {
			sub.onError(d.err)
		}
		return false
	}
	if d.doc.Revision <= sub.lastRev {
		return true
	}
	sub.lastRev = d.doc.Revision
	if sub.onSnapshot != nil {
		sub.onSnapshot(d.doc)
	}
	return true
}
