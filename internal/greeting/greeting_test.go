package greeting

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stubSource struct {
	calls atomic.Int32
	msg   string
	err   error
}

func (s *stubSource) Greeting(context.Context) (string, error) {
	s.calls.Add(1)
	return s.msg, s.err
}

func waitDone(t *testing.T, f *Fetcher) {
	t.Helper()
	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("fetch did not finish")
	}
}

func TestFetcher_StoresMessage(t *testing.T) {
	src := &stubSource{msg: `{"message":"FastAPI is working 🚀"}`}
	f := NewFetcher(src)

	assert.Empty(t, f.Message(), "empty before activation")

	f.Activate(context.Background())
	waitDone(t, f)

	assert.Equal(t, src.msg, f.Message())
}

func TestFetcher_ActivatesOnce(t *testing.T) {
	src := &stubSource{msg: "hello"}
	f := NewFetcher(src)

	for i := 0; i < 5; i++ {
		f.Activate(context.Background())
	}
	waitDone(t, f)

	assert.Equal(t, int32(1), src.calls.Load())
}

func TestFetcher_FailureLeavesMessageEmpty(t *testing.T) {
	src := &stubSource{err: errors.New("connection refused")}
	f := NewFetcher(src)

	f.Activate(context.Background())
	waitDone(t, f)

	assert.Empty(t, f.Message())
}
