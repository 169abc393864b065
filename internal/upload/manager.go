// Package upload manages the panel's list of files: adding with duplicate
// suppression, image previews, and one independent upload per file with
// per-file progress.
package upload

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/file-panel/backend/internal/client"
	"github.com/file-panel/backend/internal/logging"
	"github.com/google/uuid"
)

// ErrNotFound is returned when no entry has the requested id.
var ErrNotFound = errors.New("entry not found")

const subscriberBuffer = 64

var logger = logging.New("upload")

// Uploader sends one file. *client.Client implements it.
type Uploader interface {
	Upload(ctx context.Context, name string, r io.Reader, size int64, onProgress client.ProgressFunc) (json.RawMessage, error)
}

// Manager owns the entry list. Direct operations lock the list; results of
// asynchronous work (upload progress, completion, previews) arrive as update
// messages applied by a single loop goroutine. Updates are addressed by entry
// id and upload attempt, so updates for removed entries or superseded
// attempts are dropped.
type Manager struct {
	uploader Uploader

	mu      sync.RWMutex
	entries []*Entry
	subs    map[int]chan Event
	nextSub int

	// busy counts uploads and previews still reading each entry's file.
	// orphans holds files of removed entries that are still busy.
	busy    map[string]int
	orphans map[string]File

	updates   chan update
	pending   sync.WaitGroup
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// sendMu guards closed. Senders hold it for reading while they hand an
	// update to the loop.
	sendMu sync.RWMutex
	closed bool
}

// NewManager creates a manager and starts its update loop.
func NewManager(uploader Uploader) *Manager {
	m := &Manager{
		uploader: uploader,
		subs:     make(map[int]chan Event),
		busy:     make(map[string]int),
		orphans:  make(map[string]File),
		updates:  make(chan update, 256),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go m.loop()
	return m
}

// Add wraps each acceptable file as a Pending entry and returns the accepted
// entries. Zero-byte files and files matching an existing entry's name and
// size are skipped. Image files get a preview asynchronously.
func (m *Manager) Add(files ...File) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	var added []Entry
	for _, f := range files {
		if f == nil || f.Size() == 0 {
			if f != nil {
				logger.Debugf("skipping empty file %s", f.Name())
			}
			continue
		}
		if m.hasDuplicate(f.Name(), f.Size()) {
			logger.Debugf("skipping duplicate %s (%d bytes)", f.Name(), f.Size())
			continue
		}

		e := &Entry{
			ID:        uuid.New().String(),
			Name:      f.Name(),
			Size:      f.Size(),
			MediaType: f.MediaType(),
			State:     Pending{},
			file:      f,
		}
		m.entries = append(m.entries, e)
		added = append(added, *e)
		m.publish(EventAdded, e)

		if isImage(e.MediaType) {
			m.pending.Add(1)
			m.busy[e.ID]++
			go m.decodePreview(e.ID, f)
		}
	}
	return added
}

func (m *Manager) hasDuplicate(name string, size int64) bool {
	for _, e := range m.entries {
		if e.Name == name && e.Size == size {
			return true
		}
	}
	return false
}

// Remove deletes the entry with the given id. An upload already in flight
// for it is not cancelled; its later updates are ignored.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	m.removeAt(i)
	return nil
}

// RemoveAt deletes the entry at position index; later entries shift down by one.
func (m *Manager) RemoveAt(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index < 0 || index >= len(m.entries) {
		return ErrNotFound
	}
	m.removeAt(index)
	return nil
}

func (m *Manager) removeAt(i int) {
	e := m.entries[i]
	m.entries = append(m.entries[:i], m.entries[i+1:]...)
	m.publish(EventRemoved, e)

	if m.busy[e.ID] > 0 {
		m.orphans[e.ID] = e.file
		return
	}
	release(e.file)
}

// finish marks one upload or preview of an entry as done reading its file.
func (m *Manager) finish(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.busy[id]--; m.busy[id] > 0 {
		return
	}
	delete(m.busy, id)
	if f, ok := m.orphans[id]; ok {
		delete(m.orphans, id)
		release(f)
	}
}

func release(f File) {
	r, ok := f.(Releaser)
	if !ok {
		return
	}
	if err := r.Release(); err != nil {
		logger.Debugf("releasing %s: %v", f.Name(), err)
	}
}

func (m *Manager) indexOf(id string) int {
	for i, e := range m.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// UploadAll dispatches one independent upload for every entry whose progress
// is -1 (never sent or failed) and returns how many were dispatched.
func (m *Manager) UploadAll() int {
	type job struct {
		id      string
		attempt int
		file    File
	}

	m.mu.Lock()
	var jobs []job
	for _, e := range m.entries {
		if e.Progress() != -1 {
			continue
		}
		e.attempt++
		e.State = Uploading{Percent: 0}
		m.publish(EventProgress, e)
		m.pending.Add(1)
		m.busy[e.ID]++
		jobs = append(jobs, job{id: e.ID, attempt: e.attempt, file: e.file})
	}
	m.mu.Unlock()

	for _, j := range jobs {
		go m.upload(j.id, j.attempt, j.file)
	}
	return len(jobs)
}

func (m *Manager) upload(id string, attempt int, f File) {
	defer m.finish(id)

	short := id[:8]
	logger.Infof("[Upload %s] starting: %s (%d bytes)", short, f.Name(), f.Size())

	rc, err := f.Open()
	if err != nil {
		logger.Warnf("[Upload %s] cannot open %s: %v", short, f.Name(), err)
		m.send(update{kind: updateFailed, id: id, attempt: attempt, message: client.FallbackMessage})
		return
	}
	defer rc.Close()

	resp, err := m.uploader.Upload(context.Background(), f.Name(), rc, f.Size(), func(loaded, total int64) {
		if total <= 0 {
			return
		}
		m.send(update{kind: updateProgress, id: id, attempt: attempt, percent: int(loaded * 100 / total)})
	})
	if err != nil {
		logger.Warnf("[Upload %s] failed: %v", short, err)
		m.send(update{kind: updateFailed, id: id, attempt: attempt, message: failureMessage(err)})
		return
	}

	logger.Infof("[Upload %s] complete: %s", short, f.Name())
	m.send(update{kind: updateDone, id: id, attempt: attempt, response: resp})
}

func failureMessage(err error) string {
	var upErr *client.UploadError
	if errors.As(err, &upErr) && upErr.Message != "" {
		return upErr.Message
	}
	return client.FallbackMessage
}

func (m *Manager) decodePreview(id string, f File) {
	defer m.finish(id)

	url, err := DataURL(f)
	if err != nil {
		logger.Debugf("preview for %s unavailable: %v", f.Name(), err)
		m.send(update{kind: updatePreviewFailed, id: id})
		return
	}
	m.send(update{kind: updatePreview, id: id, preview: url})
}

// send hands an update to the loop. After Close, terminal updates are still
// counted off so Wait returns.
func (m *Manager) send(u update) {
	m.sendMu.RLock()
	defer m.sendMu.RUnlock()

	if m.closed {
		m.discard(u)
		return
	}
	select {
	case m.updates <- u:
	case <-m.quit:
		m.discard(u)
	}
}

func (m *Manager) discard(u update) {
	if u.terminal() {
		m.pending.Done()
	}
}

func (m *Manager) loop() {
	defer close(m.done)
	for {
		select {
		case u := <-m.updates:
			m.apply(u)
			if u.terminal() {
				m.pending.Done()
			}
		case <-m.quit:
			return
		}
	}
}

// drain counts off work that was queued but not applied before Close.
// It runs once no sender can reach the channel.
func (m *Manager) drain() {
	for {
		select {
		case u := <-m.updates:
			m.discard(u)
		default:
			return
		}
	}
}

func (m *Manager) apply(u update) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(u.id)
	if i < 0 {
		logger.Debugf("dropping update for removed entry %s", u.id)
		return
	}
	e := m.entries[i]

	switch u.kind {
	case updatePreview:
		e.Preview = u.preview
		m.publish(EventPreview, e)
		return
	case updatePreviewFailed:
		return
	}

	if u.attempt != e.attempt {
		return
	}

	switch u.kind {
	case updateProgress:
		cur, ok := e.State.(Uploading)
		if !ok || u.percent <= cur.Percent {
			return
		}
		if u.percent > 100 {
			u.percent = 100
		}
		e.State = Uploading{Percent: u.percent}
		m.publish(EventProgress, e)
	case updateDone:
		e.State = Done{Response: u.response}
		m.publish(EventDone, e)
	case updateFailed:
		e.State = Failed{Message: u.message}
		m.publish(EventFailed, e)
	}
}

// Entries returns a snapshot of all entries in insertion order.
func (m *Manager) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Entry, len(m.entries))
	for i, e := range m.entries {
		out[i] = *e
	}
	return out
}

// Get returns a snapshot of one entry.
func (m *Manager) Get(id string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if i := m.indexOf(id); i >= 0 {
		return *m.entries[i], true
	}
	return Entry{}, false
}

// Len returns the number of entries.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Subscribe returns a channel of events and a function that unsubscribes.
// Events are dropped for a subscriber whose buffer is full.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if c, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(c)
			}
		})
	}
}

// publish must be called with mu held.
func (m *Manager) publish(t EventType, e *Entry) {
	if len(m.subs) == 0 {
		return
	}
	ev := Event{Type: t, Entry: e.View()}
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Wait blocks until every dispatched upload and preview has been applied.
func (m *Manager) Wait() {
	m.pending.Wait()
}

// Close stops the update loop and closes subscriber channels.
// Uploads in flight are not cancelled; their results are discarded.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.quit)

		m.sendMu.Lock()
		m.closed = true
		m.sendMu.Unlock()

		<-m.done
		m.drain()

		m.mu.Lock()
		defer m.mu.Unlock()
		for id, ch := range m.subs {
			delete(m.subs, id)
			close(ch)
		}
	})
}
