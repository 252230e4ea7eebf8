package supervisor

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

type fakeServer struct {
	stop     chan struct{}
	listen   error
	shutdown atomic.Bool
}

func newFakeServer() *fakeServer { return &fakeServer{stop: make(chan struct{})} }

func (f *fakeServer) ListenAndServe() error {
	if f.listen != nil {
		return f.listen
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeServer) Shutdown(ctx context.Context) error {
	f.shutdown.Store(true)
	close(f.stop)
	return nil
}

func TestHTTPServiceShutdown(t *testing.T) {
	srv := newFakeServer()
	svc := &HTTPService{Server: srv, ShutdownTimeout: time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
	if !srv.shutdown.Load() {
		t.Error("Shutdown was not called")
	}
}

func TestHTTPServiceListenError(t *testing.T) {
	srv := newFakeServer()
	srv.listen = errors.New("address in use")
	err := (&HTTPService{Server: srv}).Serve(context.Background())
	if err == nil || srv.shutdown.Load() {
		t.Errorf("Serve = %v, shutdown = %v", err, srv.shutdown.Load())
	}
}

type countingService struct{ runs atomic.Int32 }

func (c *countingService) Serve(ctx context.Context) error {
	c.runs.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func TestTreeRunsServices(t *testing.T) {
	tree := NewTree(TreeConfig{ShutdownTimeout: time.Second})
	api, job := &countingService{}, &countingService{}
	tree.AddAPIService(api)
	tree.AddJobService(job)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tree.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for (api.runs.Load() == 0 || job.runs.Load() == 0) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v", err)
	}
	if api.runs.Load() != 1 || job.runs.Load() != 1 {
		t.Errorf("runs api=%d job=%d", api.runs.Load(), job.runs.Load())
	}
}
