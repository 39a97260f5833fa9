package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// A Store provides the remote message relation: reads, writes and the
// row-level change feed. Event delivery is at-least-once; the feed absorbs
// duplicates by id.
type Store interface {
	FetchAll(ctx context.Context) ([]Message, error)
	Insert(ctx context.Context, draft Draft) (Message, error)
	Delete(ctx context.Context, id string) error
	Subscribe(ctx context.Context, handler func(Event)) (unsubscribe func(), err error)
}

// A Codec encrypts outgoing fields and decrypts message batches. DecryptBatch
// returns a slice of the same length and order as its input and passes values
// through unchanged when decryption is unavailable.
type Codec interface {
	EncryptMessage(ctx context.Context, displayName, text string) (nameCipher, textCipher string, err error)
	DecryptBatch(ctx context.Context, msgs []Message) []Message
}

var (
	// ErrNoSession is returned when an operation requires a signed-in user.
	ErrNoSession = errors.New("chat: no session")
	// ErrEmptyMessage is returned when a send carries no text or the session
	// has no display name.
	ErrEmptyMessage = errors.New("chat: empty message")
	// ErrNotAllowed is returned by the advisory privilege check on delete.
	// The store performs the authoritative check.
	ErrNotAllowed = errors.New("chat: not allowed")
)

const pendingPrefix = "pending-"

// Options configures a Feed.
type Options struct {
	Store  Store
	Codec  Codec
	Logger *slog.Logger
	// Session returns the current session or nil. It is re-read on every
	// operation that needs it.
	Session func() *Session
	// Navigate receives scroll-and-highlight requests. Optional.
	Navigate func(Navigation)
}

// A Feed maintains the authoritative in-memory ordered message list for one
// chat view. It merges the initial bulk fetch, row-level change events and
// the current user's own optimistic sends, keeping the list sorted by
// created_at ascending and free of duplicate ids.
//
// All list mutations run on a single apply goroutine, one to completion
// before the next; readers get copy-on-write snapshots and never observe a
// partial update. A Feed owns its list exclusively: independent views run
// independent feeds against the same store.
type Feed struct {
	store    Store
	codec    Codec
	log      *slog.Logger
	session  func() *Session
	navigate func(Navigation)

	queue       chan func()
	done        chan struct{}
	closeOnce   sync.Once
	unsubscribe func()

	mu      sync.RWMutex
	msgs    []Message
	index   map[string]int
	loading bool
	lastErr error

	obsMu     sync.Mutex
	observers map[int]func([]Message)
	nextObs   int
}

// NewFeed builds a Feed. Nothing is fetched until Start.
func NewFeed(opts Options) *Feed {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	session := opts.Session
	if session == nil {
		session = func() *Session { return nil }
	}
	return &Feed{
		store:     opts.Store,
		codec:     opts.Codec,
		log:       log,
		session:   session,
		navigate:  opts.Navigate,
		queue:     make(chan func(), 128),
		done:      make(chan struct{}),
		index:     map[string]int{},
		loading:   true,
		observers: map[int]func([]Message){},
	}
}

// Start establishes the change-feed subscription and kicks off the initial
// fetch. Events that arrive while the fetch is in flight queue up behind it
// and replay afterwards, so none are lost. The returned error covers
// subscription setup only; a failed fetch surfaces through Err.
func (f *Feed) Start(ctx context.Context) error {
	unsub, err := f.store.Subscribe(ctx, func(ev Event) {
		f.enqueue(func() { f.apply(ctx, ev) })
	})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	f.unsubscribe = unsub
	f.enqueue(func() { f.bootstrap(ctx) })
	go f.run()
	return nil
}

// Close tears the feed down: the subscription is released and no further
// mutation reaches the list, including results of calls still in flight.
func (f *Feed) Close() {
	f.closeOnce.Do(func() {
		close(f.done)
		if f.unsubscribe != nil {
			f.unsubscribe()
		}
	})
}

func (f *Feed) run() {
	for {
		select {
		case <-f.done:
			return
		case fn := <-f.queue:
			fn()
		}
	}
}

func (f *Feed) enqueue(fn func()) {
	select {
	case <-f.done:
	case f.queue <- fn:
	}
}

func (f *Feed) bootstrap(ctx context.Context) {
	msgs, err := f.store.FetchAll(ctx)
	if err != nil {
		f.log.Error("Could not fetch messages", "error", err.Error())
		f.replace([]Message{}, err)
		return
	}
	msgs = f.codec.DecryptBatch(ctx, msgs)
	sort.SliceStable(msgs, func(i, j int) bool { return before(msgs[i], msgs[j]) })
	f.replace(msgs, nil)
}

// before is the list order: created_at ascending, ties broken by id.
func before(a, b Message) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID < b.ID
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// replace installs a new snapshot. The only writer is the apply goroutine.
func (f *Feed) replace(msgs []Message, err error) {
	idx := make(map[string]int, len(msgs))
	for i, m := range msgs {
		idx[m.ID] = i
	}
	f.mu.Lock()
	f.msgs = msgs
	f.index = idx
	f.loading = false
	f.lastErr = err
	f.mu.Unlock()
	f.notify(msgs)
}

func (f *Feed) apply(ctx context.Context, ev Event) {
	switch ev.Type {
	case EventInsert:
		f.applyInsert(ctx, ev.Message)
	case EventUpdate:
		f.applyUpdate(ev.Message)
	case EventDelete:
		f.applyDelete(ev.Message.ID)
	default:
		f.log.Warn("Unknown change event", "type", string(ev.Type))
	}
}

func (f *Feed) applyInsert(ctx context.Context, msg Message) {
	if _, ok := f.Get(msg.ID); ok {
		// Our own send already confirmed, or a duplicate redelivery.
		return
	}
	dec := f.codec.DecryptBatch(ctx, []Message{msg})
	f.insertSorted(dec[0])
}

// insertSorted places msg at the position preserving ascending created_at
// order. Events may arrive slightly out of temporal order, so the position
// is not necessarily the tail.
func (f *Feed) insertSorted(msg Message) {
	f.mu.RLock()
	cur := f.msgs
	f.mu.RUnlock()

	i := sort.Search(len(cur), func(i int) bool { return before(msg, cur[i]) })
	next := make([]Message, 0, len(cur)+1)
	next = append(next, cur[:i]...)
	next = append(next, msg)
	next = append(next, cur[i:]...)
	f.replace(next, nil)
}

// applyUpdate overwrites only the fields the event is authoritative for,
// which is the trigger-maintained reply count. Unknown ids are a benign
// race with a late subscription and are dropped.
func (f *Feed) applyUpdate(msg Message) {
	f.mu.RLock()
	cur := f.msgs
	i, ok := f.index[msg.ID]
	f.mu.RUnlock()
	if !ok {
		return
	}
	next := make([]Message, len(cur))
	copy(next, cur)
	next[i].ReplyCount = msg.ReplyCount
	f.replace(next, nil)
}

func (f *Feed) applyDelete(id string) {
	f.mu.RLock()
	cur := f.msgs
	i, ok := f.index[id]
	f.mu.RUnlock()
	if !ok {
		return
	}
	next := make([]Message, 0, len(cur)-1)
	next = append(next, cur[:i]...)
	next = append(next, cur[i+1:]...)
	f.replace(next, nil)
}

// Send encrypts text and inserts it, appending an optimistic pending copy
// immediately so the sender sees the message without waiting for the
// subscription round-trip. The pending copy is swapped for the server row on
// confirmation and rolled back if the insert fails. The confirmation event
// that arrives later for the same id is dropped by the id index.
func (f *Feed) Send(ctx context.Context, text, replyToID string) error {
	sess := f.session()
	if sess == nil {
		return ErrNoSession
	}
	text = strings.TrimSpace(text)
	if text == "" || sess.DisplayName == "" {
		return ErrEmptyMessage
	}

	nameCipher, textCipher, err := f.codec.EncryptMessage(ctx, sess.DisplayName, text)
	if err != nil {
		return fmt.Errorf("encrypt message: %w", err)
	}

	placeholder := Message{
		ID:          pendingPrefix + uuid.NewString(),
		AuthorID:    sess.UserID,
		DisplayName: sess.DisplayName,
		Body:        text,
		CreatedAt:   time.Now(),
		ReplyToID:   replyToID,
		Author:      &AuthorInfo{Avatar: sess.AvatarURL, IsPrivileged: sess.IsPrivileged},
		Pending:     true,
	}
	f.enqueue(func() { f.insertSorted(placeholder) })

	confirmed, err := f.store.Insert(ctx, Draft{
		AuthorID:          sess.UserID,
		DisplayNameCipher: nameCipher,
		BodyCipher:        textCipher,
		ReplyToID:         replyToID,
	})
	if err != nil {
		f.enqueue(func() { f.applyDelete(placeholder.ID) })
		return fmt.Errorf("insert message: %w", err)
	}

	// The server row carries ciphertext; keep the plaintext already in hand.
	confirmed.DisplayName = placeholder.DisplayName
	confirmed.Body = placeholder.Body
	confirmed.Author = placeholder.Author
	f.enqueue(func() {
		f.applyDelete(placeholder.ID)
		if _, ok := f.Get(confirmed.ID); !ok {
			f.insertSorted(confirmed)
		}
	})
	return nil
}

// Delete removes a message. The privilege check here is advisory UX only;
// the store rejects unauthorized deletes regardless.
func (f *Feed) Delete(ctx context.Context, id string) error {
	sess := f.session()
	if sess == nil || !sess.IsPrivileged {
		return ErrNotAllowed
	}
	if err := f.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	f.enqueue(func() { f.applyDelete(id) })
	return nil
}

// Messages returns the current snapshot, plaintext and sorted by created_at
// ascending. The slice is never mutated after return.
func (f *Feed) Messages() []Message {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.msgs
}

// Get looks a message up by id.
func (f *Feed) Get(id string) (Message, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	i, ok := f.index[id]
	if !ok {
		return Message{}, false
	}
	return f.msgs[i], true
}

// Loading reports whether the initial fetch is still in flight.
func (f *Feed) Loading() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.loading
}

// Err returns the error signal from the last failed fetch, nil otherwise.
func (f *Feed) Err() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastErr
}

// Observe registers fn to receive every new snapshot. The returned function
// removes the registration. Any UI layer can adapt this to its own
// re-render mechanism.
func (f *Feed) Observe(fn func([]Message)) (remove func()) {
	f.obsMu.Lock()
	id := f.nextObs
	f.nextObs++
	f.observers[id] = fn
	f.obsMu.Unlock()
	return func() {
		f.obsMu.Lock()
		delete(f.observers, id)
		f.obsMu.Unlock()
	}
}

func (f *Feed) notify(msgs []Message) {
	f.obsMu.Lock()
	fns := make([]func([]Message), 0, len(f.observers))
	for _, fn := range f.observers {
		fns = append(fns, fn)
	}
	f.obsMu.Unlock()
	for _, fn := range fns {
		fn(msgs)
	}
}

func (f *Feed) emitNavigation(nav Navigation) {
	if f.navigate != nil {
		f.navigate(nav)
	}
}
