package upload

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/file-panel/backend/internal/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUploader runs fn for every upload and records the names it saw.
type fakeUploader struct {
	mu    sync.Mutex
	calls []string
	fn    func(name string, data []byte, progress client.ProgressFunc) (json.RawMessage, error)
}

func (f *fakeUploader) Upload(_ context.Context, name string, r io.Reader, size int64, progress client.ProgressFunc) (json.RawMessage, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
	return f.fn(name, data, progress)
}

func (f *fakeUploader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func succeed(name string, data []byte, progress client.ProgressFunc) (json.RawMessage, error) {
	total := int64(len(data))
	progress(total/2, total)
	progress(total, total)
	return json.RawMessage(`{"stored":"` + name + `"}`), nil
}

func newTestManager(t *testing.T, fn func(string, []byte, client.ProgressFunc) (json.RawMessage, error)) (*Manager, *fakeUploader) {
	up := &fakeUploader{fn: fn}
	m := NewManager(up)
	t.Cleanup(m.Close)
	return m, up
}

func textFile(name string, size int) *MemFile {
	return NewMemFile(name, "text/plain", []byte(strings.Repeat("x", size)))
}

type brokenFile struct {
	*MemFile
}

func (brokenFile) Open() (io.ReadCloser, error) {
	return nil, errors.New("unreadable")
}

// releasingFile counts Release calls.
type releasingFile struct {
	*MemFile
	released atomic.Int32
}

func (f *releasingFile) Release() error {
	f.released.Add(1)
	return nil
}

func TestAdd_SkipsEmptyFiles(t *testing.T) {
	m, _ := newTestManager(t, succeed)

	added := m.Add(NewMemFile("empty.txt", "text/plain", nil))
	assert.Empty(t, added)
	assert.Equal(t, 0, m.Len())
}

func TestAdd_SuppressesDuplicates(t *testing.T) {
	m, _ := newTestManager(t, succeed)

	m.Add(textFile("a.txt", 500))
	added := m.Add(textFile("a.txt", 500))

	assert.Empty(t, added)
	assert.Equal(t, 1, m.Len())

	// same name, different size is a different file
	m.Add(textFile("a.txt", 501))
	assert.Equal(t, 2, m.Len())

	// duplicates within one call
	m.Add(textFile("b.txt", 10), textFile("b.txt", 10))
	assert.Equal(t, 3, m.Len())
}

func TestAdd_NewEntriesArePending(t *testing.T) {
	m, _ := newTestManager(t, succeed)

	added := m.Add(textFile("a.txt", 10))
	require.Len(t, added, 1)

	e := added[0]
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, -1, e.Progress())
	assert.Equal(t, StatusPending, e.State.Status())
	assert.Nil(t, e.Response())
	assert.Empty(t, e.ErrorMessage())
	assert.Empty(t, e.Preview)
}

func TestAdd_ImagePreview(t *testing.T) {
	m, _ := newTestManager(t, succeed)

	png := []byte("\x89PNG\r\n\x1a\nfake")
	added := m.Add(NewMemFile("pic.png", "image/png", png), textFile("notes.txt", 4))
	require.Len(t, added, 2)

	m.Wait()

	pic, ok := m.Get(added[0].ID)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(pic.Preview, "data:image/png;base64,"), "got %q", pic.Preview)

	notes, _ := m.Get(added[1].ID)
	assert.Empty(t, notes.Preview, "non-image files get no preview")
}

func TestAdd_PreviewFailureIsSilent(t *testing.T) {
	m, _ := newTestManager(t, succeed)

	added := m.Add(brokenFile{NewMemFile("pic.jpg", "image/jpeg", []byte("jpeg"))})
	m.Wait()

	e, ok := m.Get(added[0].ID)
	require.True(t, ok)
	assert.Empty(t, e.Preview)
	assert.Empty(t, e.ErrorMessage())
	assert.Equal(t, -1, e.Progress())
}

func TestRemoveAt_ShiftsIndices(t *testing.T) {
	m, _ := newTestManager(t, succeed)
	m.Add(textFile("a", 1), textFile("b", 1), textFile("c", 1))

	require.NoError(t, m.RemoveAt(1))

	entries := m.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Name)
	assert.Equal(t, "c", entries[1].Name)

	assert.ErrorIs(t, m.RemoveAt(5), ErrNotFound)
	assert.ErrorIs(t, m.RemoveAt(-1), ErrNotFound)
}

func TestRemove_ByID(t *testing.T) {
	m, _ := newTestManager(t, succeed)
	added := m.Add(textFile("a", 1), textFile("b", 1))

	require.NoError(t, m.Remove(added[0].ID))
	assert.Equal(t, 1, m.Len())
	assert.ErrorIs(t, m.Remove(added[0].ID), ErrNotFound)
}

func TestUploadAll_Success(t *testing.T) {
	m, up := newTestManager(t, succeed)
	added := m.Add(textFile("a.txt", 100))

	assert.Equal(t, 1, m.UploadAll())
	m.Wait()

	e, _ := m.Get(added[0].ID)
	assert.Equal(t, 100, e.Progress())
	assert.Empty(t, e.ErrorMessage())
	assert.JSONEq(t, `{"stored":"a.txt"}`, string(e.Response()))
	assert.Equal(t, 1, up.callCount())

	// done entries are not sent again
	assert.Equal(t, 0, m.UploadAll())
}

func TestUploadAll_FailureUsesServerMessage(t *testing.T) {
	m, _ := newTestManager(t, func(name string, _ []byte, _ client.ProgressFunc) (json.RawMessage, error) {
		if name == "server.txt" {
			return nil, &client.UploadError{Status: 400, Message: "unsupported file"}
		}
		return nil, errors.New("connection reset")
	})
	added := m.Add(textFile("server.txt", 10), textFile("network.txt", 10))

	m.UploadAll()
	m.Wait()

	server, _ := m.Get(added[0].ID)
	assert.Equal(t, -1, server.Progress())
	assert.Equal(t, "unsupported file", server.ErrorMessage())
	assert.Nil(t, server.Response())

	network, _ := m.Get(added[1].ID)
	assert.Equal(t, -1, network.Progress())
	assert.Equal(t, client.FallbackMessage, network.ErrorMessage())
}

func TestUploadAll_OpenFailure(t *testing.T) {
	m, up := newTestManager(t, succeed)
	added := m.Add(brokenFile{NewMemFile("gone.txt", "text/plain", []byte("data"))})

	m.UploadAll()
	m.Wait()

	e, _ := m.Get(added[0].ID)
	assert.Equal(t, client.FallbackMessage, e.ErrorMessage())
	assert.Equal(t, 0, up.callCount())
}

func TestUploadAll_IndependentFailures(t *testing.T) {
	m, up := newTestManager(t, func(name string, data []byte, progress client.ProgressFunc) (json.RawMessage, error) {
		if name == "first.txt" {
			return nil, &client.UploadError{Status: 500, Message: "boom"}
		}
		return succeed(name, data, progress)
	})
	added := m.Add(textFile("first.txt", 10), textFile("second.txt", 10))

	assert.Equal(t, 2, m.UploadAll())
	m.Wait()

	assert.Equal(t, 2, up.callCount())
	first, _ := m.Get(added[0].ID)
	second, _ := m.Get(added[1].ID)
	assert.Equal(t, -1, first.Progress())
	assert.Equal(t, 100, second.Progress())
	assert.Empty(t, second.ErrorMessage())
}

func TestUploadAll_RetriesFailedEntries(t *testing.T) {
	var fail sync.Once
	m, up := newTestManager(t, func(name string, data []byte, progress client.ProgressFunc) (json.RawMessage, error) {
		var err error
		fail.Do(func() { err = &client.UploadError{Status: 503, Message: "busy"} })
		if err != nil {
			return nil, err
		}
		return succeed(name, data, progress)
	})
	added := m.Add(textFile("a.txt", 10))

	m.UploadAll()
	m.Wait()
	e, _ := m.Get(added[0].ID)
	require.Equal(t, "busy", e.ErrorMessage())

	assert.Equal(t, 1, m.UploadAll())
	m.Wait()

	e, _ = m.Get(added[0].ID)
	assert.Equal(t, 100, e.Progress())
	assert.Empty(t, e.ErrorMessage(), "a new attempt clears the previous error")
	assert.Equal(t, 2, up.callCount())
}

func TestUpload_ProgressIsMonotonic(t *testing.T) {
	m, _ := newTestManager(t, func(name string, data []byte, progress client.ProgressFunc) (json.RawMessage, error) {
		progress(50, 100)
		progress(30, 100) // late report from the transport must not move progress back
		progress(99, 100)
		return json.RawMessage(`{}`), nil
	})
	events, unsubscribe := m.Subscribe()
	defer unsubscribe()

	m.Add(textFile("a.txt", 10))
	m.UploadAll()
	m.Wait()

	var seen []int
	for len(events) > 0 {
		ev := <-events
		if ev.Type == EventProgress {
			seen = append(seen, ev.Entry.Progress)
		}
	}
	assert.Equal(t, []int{0, 50, 99}, seen)
}

func TestUpload_ProgressFloorsPercentage(t *testing.T) {
	release := make(chan struct{})
	reported := make(chan struct{})
	m, _ := newTestManager(t, func(name string, data []byte, progress client.ProgressFunc) (json.RawMessage, error) {
		progress(2, 3) // 66.6% -> 66
		close(reported)
		<-release
		return json.RawMessage(`{}`), nil
	})
	added := m.Add(textFile("a.txt", 3))
	m.UploadAll()

	<-reported
	require.Eventually(t, func() bool {
		e, _ := m.Get(added[0].ID)
		return e.Progress() == 66
	}, time.Second, 5*time.Millisecond)

	close(release)
	m.Wait()
}

func TestRemove_DuringUploadIsInert(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	m, _ := newTestManager(t, func(name string, data []byte, progress client.ProgressFunc) (json.RawMessage, error) {
		started <- struct{}{}
		<-release
		return succeed(name, data, progress)
	})
	added := m.Add(textFile("a.txt", 10), textFile("b.txt", 10))
	m.UploadAll()
	<-started
	<-started

	require.NoError(t, m.Remove(added[0].ID))
	close(release)
	m.Wait()

	entries := m.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, added[1].ID, entries[0].ID)
	assert.Equal(t, 100, entries[0].Progress())
}

func TestRemove_ReleasesIdleFile(t *testing.T) {
	m, _ := newTestManager(t, succeed)
	f := &releasingFile{MemFile: textFile("a.txt", 10)}
	kept := &releasingFile{MemFile: textFile("b.txt", 10)}

	added := m.Add(f, kept)
	require.NoError(t, m.Remove(added[0].ID))

	assert.Equal(t, int32(1), f.released.Load())
	assert.Equal(t, int32(0), kept.released.Load())
}

func TestRemove_ReleasesAfterUploadFinishes(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	m, _ := newTestManager(t, func(name string, data []byte, progress client.ProgressFunc) (json.RawMessage, error) {
		started <- struct{}{}
		<-release
		return succeed(name, data, progress)
	})
	f := &releasingFile{MemFile: textFile("a.txt", 10)}
	added := m.Add(f)
	m.UploadAll()
	<-started

	require.NoError(t, m.Remove(added[0].ID))
	assert.Equal(t, int32(0), f.released.Load(), "still read by the upload")

	close(release)
	m.Wait()
	assert.Eventually(t, func() bool {
		return f.released.Load() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestClose_DuringUploadWaitReturns(t *testing.T) {
	for i := 0; i < 40; i++ {
		release := make(chan struct{})
		started := make(chan struct{}, 1)
		m, _ := newTestManager(t, func(name string, data []byte, progress client.ProgressFunc) (json.RawMessage, error) {
			started <- struct{}{}
			<-release
			return succeed(name, data, progress)
		})
		m.Add(textFile("a.txt", 10))
		require.Equal(t, 1, m.UploadAll())
		<-started

		m.Close()
		close(release)

		waited := make(chan struct{})
		go func() {
			m.Wait()
			close(waited)
		}()
		select {
		case <-waited:
		case <-time.After(time.Second):
			t.Fatalf("Wait did not return after Close (run %d)", i)
		}
	}
}

func TestSubscribe_ReceivesLifecycle(t *testing.T) {
	m, _ := newTestManager(t, succeed)
	events, unsubscribe := m.Subscribe()

	added := m.Add(textFile("a.txt", 10))
	m.UploadAll()
	m.Wait()
	require.NoError(t, m.Remove(added[0].ID))

	var types []EventType
	for len(events) > 0 {
		types = append(types, (<-events).Type)
	}
	assert.Equal(t, EventAdded, types[0])
	assert.Contains(t, types, EventDone)
	assert.Equal(t, EventRemoved, types[len(types)-1])

	unsubscribe()
	unsubscribe()
	_, open := <-events
	assert.False(t, open)
}

func TestEntryView(t *testing.T) {
	e := Entry{ID: "1", Name: "a", Size: 3, MediaType: "text/plain", State: Done{Response: json.RawMessage(`{"k":1}`)}}

	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1","name":"a","size":3,"mediaType":"text/plain","status":"done","progress":100,"response":{"k":1}}`, string(data))

	e.State = Failed{Message: "nope"}
	data, _ = json.Marshal(e)
	assert.JSONEq(t, `{"id":"1","name":"a","size":3,"mediaType":"text/plain","status":"failed","progress":-1,"error":"nope"}`, string(data))
}
