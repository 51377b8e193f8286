// Package store keeps local collections of remote entities in sync with
// the NT view service and exposes their loading and error state.
package store

import (
	"context"
	"slices"
	"sync"

	"github.com/ethpandaops/ntview/pkg/transport"
	"github.com/sirupsen/logrus"
)

// Entity is anything with a server-assigned identity.
type Entity interface {
	Identity() int64
}

// Placement decides where Create inserts a new entry.
type Placement int

const (
	// Append inserts at the end of the collection.
	Append Placement = iota
	// Prepend inserts at the start of the collection.
	Prepend
)

// Read is the outcome of a read operation. Reads never return errors: a
// failure is recorded on the store and reported here for convenience.
type Read[V any] struct {
	Value   V
	OK      bool
	Failure *Failure
	// Stale is set when the response was discarded because a newer
	// request had been issued.
	Stale bool
}

// State is a point-in-time copy of a store.
type State[T Entity] struct {
	Items   []T
	Current *T
	Loading bool
	Error   string
}

// Option configures a store.
type Option func(*options)

type options struct {
	discardStale bool
}

// WithStaleResponseDiscard drops list responses that resolve after a newer
// list request was issued. Without it the last response to arrive wins.
func WithStaleResponseDiscard() Option {
	return func(o *options) {
		o.discardStale = true
	}
}

type listener[T Entity] struct {
	id uint64
	fn func(State[T])
}

// Resource holds one collection of T plus a single-item "current" slot,
// a loading flag and the last failure. It is safe for concurrent use;
// remote calls run without holding the lock.
type Resource[T Entity] struct {
	log       logrus.FieldLogger
	names     Names
	placement Placement
	opts      options

	mu        sync.Mutex
	items     []T
	current   *T
	loading   bool
	failure   *Failure
	listSeq   uint64
	listeners []listener[T]
	nextID    uint64
	version   uint64

	// notifyMu serializes listener calls. delivered is the version of the
	// last state handed to listeners.
	notifyMu  sync.Mutex
	delivered uint64
}

// NewResource creates an empty store.
func NewResource[T Entity](
	log logrus.FieldLogger,
	names Names,
	placement Placement,
	opts ...Option,
) *Resource[T] {
	r := &Resource[T]{
		log:       log.WithField("store", names.Plural),
		names:     names,
		placement: placement,
	}

	for _, opt := range opts {
		opt(&r.opts)
	}

	return r
}

// Subscribe registers fn to run after every state change. Listeners run
// outside the state lock in registration order, one state at a time, and
// never observe a state older than one already delivered. A listener must
// not call mutating methods of the same store synchronously. The returned
// func unsubscribes.
func (r *Resource[T]) Subscribe(fn func(State[T])) func() {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.listeners = append(r.listeners, listener[T]{id: id, fn: fn})
	r.mu.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()

			r.listeners = slices.DeleteFunc(r.listeners, func(l listener[T]) bool {
				return l.id == id
			})
		})
	}
}

// Snapshot returns a copy of the current state.
func (r *Resource[T]) Snapshot() State[T] {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.snapshotLocked()
}

// Items returns a copy of the collection.
func (r *Resource[T]) Items() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.items)
}

// Current returns the single-item slot.
func (r *Resource[T]) Current() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		var zero T

		return zero, false
	}

	return *r.current, true
}

// IsLoading reports whether a load is in flight.
func (r *Resource[T]) IsLoading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.loading
}

// ErrorMessage returns the current failure message, or "".
func (r *Resource[T]) ErrorMessage() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failure == nil {
		return ""
	}

	return r.failure.Message
}

// Failure returns the current failure, or nil.
func (r *Resource[T]) Failure() *Failure {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.failure
}

// FetchAll replaces the whole collection with the result of list. On
// failure the collection is left unchanged.
func (r *Resource[T]) FetchAll(ctx context.Context, list func(context.Context) ([]T, error)) Read[[]T] {
	var seq uint64

	r.mutate(func() {
		r.listSeq++
		seq = r.listSeq
		r.loading = true
		r.failure = nil
	})

	items, err := list(ctx)

	var out Read[[]T]

	r.mutate(func() {
		if r.opts.discardStale && seq != r.listSeq {
			out.Stale = true

			return
		}

		r.loading = false

		if err != nil {
			out.Failure = r.recordLocked(CategoryLoadList, err)

			return
		}

		r.items = slices.Clone(items)
		out.Value = slices.Clone(items)
		out.OK = true
	})

	if out.Stale {
		r.log.WithField("seq", seq).Debug("Discarded stale list response")
	}

	return out
}

// FetchOne loads one entity into the current slot. On failure the slot is
// cleared.
func (r *Resource[T]) FetchOne(ctx context.Context, id int64, get func(context.Context) (T, error)) Read[T] {
	return r.fetchOne(ctx, id, get, false)
}

// Reconcile is FetchOne that also replaces the matching collection entry
// in place, so list views observe the refreshed entity.
func (r *Resource[T]) Reconcile(ctx context.Context, id int64, get func(context.Context) (T, error)) Read[T] {
	return r.fetchOne(ctx, id, get, true)
}

func (r *Resource[T]) fetchOne(
	ctx context.Context,
	id int64,
	get func(context.Context) (T, error),
	syncList bool,
) Read[T] {
	r.mutate(func() {
		r.loading = true
		r.failure = nil
	})

	v, err := get(ctx)

	var out Read[T]

	r.mutate(func() {
		r.loading = false

		if err != nil {
			r.current = nil

			cat := CategoryLoad
			if transport.IsNotFound(err) {
				cat = CategoryNotFound
			}

			out.Failure = r.recordLocked(cat, err)

			return
		}

		r.current = &v

		if syncList {
			r.replaceLocked(v)
		}

		out.Value = v
		out.OK = true
	})

	if out.Failure != nil {
		r.log.WithField("id", id).Debug(out.Failure.Message)
	}

	return out
}

// Create inserts the created entity according to the store's placement.
func (r *Resource[T]) Create(ctx context.Context, create func(context.Context) (T, error)) (T, error) {
	return r.Add(ctx, CategoryCreate, create)
}

// Add is Create with a custom failure category, for actions such as
// uploads that produce a new entity. An entity whose identity is already
// present replaces the existing entry in place.
func (r *Resource[T]) Add(ctx context.Context, cat Category, create func(context.Context) (T, error)) (T, error) {
	r.mutate(func() { r.failure = nil })

	v, err := create(ctx)
	if err != nil {
		var zero T

		return zero, r.fail(cat, err)
	}

	r.mutate(func() {
		if r.replaceLocked(v) {
			return
		}

		if r.placement == Prepend {
			r.items = slices.Insert(r.items, 0, v)
		} else {
			r.items = append(r.items, v)
		}
	})

	return v, nil
}

// Update replaces the entry with the same identity in place. A result for
// an identity not in the collection is dropped. A matching current slot is
// refreshed too.
func (r *Resource[T]) Update(ctx context.Context, id int64, update func(context.Context) (T, error)) (T, error) {
	r.mutate(func() { r.failure = nil })

	v, err := update(ctx)
	if err != nil {
		var zero T

		return zero, r.fail(CategoryUpdate, err)
	}

	r.mutate(func() {
		if !r.replaceLocked(v) {
			r.log.WithField("id", id).Debug("Dropped update for entry not in collection")
		}

		if r.current != nil && (*r.current).Identity() == v.Identity() {
			r.current = &v
		}
	})

	return v, nil
}

// Delete removes the entry with the given identity. A NotFound reply is
// treated as success: the entity is gone either way.
func (r *Resource[T]) Delete(ctx context.Context, id int64, del func(context.Context) error) error {
	r.mutate(func() { r.failure = nil })

	if err := del(ctx); err != nil {
		if !transport.IsNotFound(err) {
			return r.fail(CategoryDelete, err)
		}

		r.log.WithField("id", id).Debug("Entry already deleted remotely")
	}

	r.mutate(func() {
		r.items = slices.DeleteFunc(r.items, func(v T) bool {
			return v.Identity() == id
		})

		if r.current != nil && (*r.current).Identity() == id {
			r.current = nil
		}
	})

	return nil
}

// DeleteAll empties the collection and current slot after del succeeds.
func (r *Resource[T]) DeleteAll(ctx context.Context, del func(context.Context) error) error {
	return r.DeleteWhere(ctx, del, func(T) bool { return true })
}

// DeleteWhere removes the entries matching match after del succeeds. A
// NotFound reply counts as success, like Delete.
func (r *Resource[T]) DeleteWhere(
	ctx context.Context,
	del func(context.Context) error,
	match func(T) bool,
) error {
	r.mutate(func() { r.failure = nil })

	if err := del(ctx); err != nil {
		if !transport.IsNotFound(err) {
			return r.failWith(CategoryDelete, "failed to delete "+r.names.Plural, err)
		}

		r.log.Debug("Entries already deleted remotely")
	}

	r.mutate(func() {
		r.items = slices.DeleteFunc(r.items, match)

		if r.current != nil && match(*r.current) {
			r.current = nil
		}
	})

	return nil
}

// Perform runs a mutating action that has no direct effect on the
// collection. A failure is recorded under cat and returned.
func (r *Resource[T]) Perform(ctx context.Context, cat Category, fn func(context.Context) error) error {
	r.mutate(func() { r.failure = nil })

	if err := fn(ctx); err != nil {
		return r.fail(cat, err)
	}

	return nil
}

// Fetch runs a read whose result is not held in the collection, such as
// a plain-text rendering. Loading and failure state follow FetchOne.
func Fetch[T Entity, V any](ctx context.Context, r *Resource[T], cat Category, fn func(context.Context) (V, error)) Read[V] {
	r.mutate(func() {
		r.loading = true
		r.failure = nil
	})

	v, err := fn(ctx)

	var out Read[V]

	r.mutate(func() {
		r.loading = false

		if err != nil {
			c := cat
			if transport.IsNotFound(err) {
				c = CategoryNotFound
			}

			out.Failure = r.recordLocked(c, err)

			return
		}

		out.Value = v
		out.OK = true
	})

	return out
}

func (r *Resource[T]) fail(cat Category, err error) *Failure {
	return r.failWith(cat, r.names.message(cat), err)
}

func (r *Resource[T]) failWith(cat Category, msg string, err error) *Failure {
	f := &Failure{Op: cat, Message: msg, Err: err}

	r.mutate(func() { r.failure = f })

	r.log.WithError(err).WithField("op", string(cat)).Warn(msg)

	return f
}

func (r *Resource[T]) recordLocked(cat Category, err error) *Failure {
	f := &Failure{Op: cat, Message: r.names.message(cat), Err: err}
	r.failure = f

	return f
}

// replaceLocked swaps the entry with v's identity for v and reports
// whether one was found.
func (r *Resource[T]) replaceLocked(v T) bool {
	idx := slices.IndexFunc(r.items, func(e T) bool {
		return e.Identity() == v.Identity()
	})
	if idx < 0 {
		return false
	}

	r.items[idx] = v

	return true
}

func (r *Resource[T]) snapshotLocked() State[T] {
	s := State[T]{
		Items:   slices.Clone(r.items),
		Loading: r.loading,
	}

	if r.current != nil {
		c := *r.current
		s.Current = &c
	}

	if r.failure != nil {
		s.Error = r.failure.Message
	}

	return s
}

// mutate applies fn under the lock and then notifies listeners. A state
// whose version is not newer than the last delivered one is dropped, so
// concurrent mutations cannot leave listeners on an outdated state.
func (r *Resource[T]) mutate(fn func()) {
	r.mu.Lock()
	fn()
	r.version++
	version := r.version
	state := r.snapshotLocked()
	listeners := slices.Clone(r.listeners)
	r.mu.Unlock()

	if len(listeners) == 0 {
		return
	}

	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	if version <= r.delivered {
		return
	}

	r.delivered = version

	for _, l := range listeners {
		l.fn(state)
	}
}
