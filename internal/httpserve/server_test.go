package httpserve

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, s *Server) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-s.Ready():
	case err := <-done:
		cancel()
		t.Fatalf("Run returned before listening: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("server did not start")
	}
	return cancel, done
}

func wait(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
		return nil
	}
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	s := New("test", &http.Server{
		Addr: "127.0.0.1:0",
		Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "pong")
		}),
	}, time.Second)
	assert.Nil(t, s.Addr())

	cancel, done := run(t, s)
	require.NotNil(t, s.Addr())

	resp, err := http.Get("http://" + s.Addr().String() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	cancel()
	assert.NoError(t, wait(t, done))

	// stopped for good
	assert.NoError(t, s.Shutdown(context.Background()))
}

func TestRun_AddressInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	s := New("test", &http.Server{Addr: ln.Addr().String()}, 0)
	err = s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test server")
}

func TestRun_DrainsActiveRequest(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	s := New("test", &http.Server{
		Addr: "127.0.0.1:0",
		Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			close(started)
			<-release
			w.WriteHeader(http.StatusAccepted)
		}),
	}, 5*time.Second)
	cancel, done := run(t, s)

	status := make(chan int, 1)
	go func() {
		resp, err := http.Get("http://" + s.Addr().String() + "/")
		if err != nil {
			status <- 0
			return
		}
		_ = resp.Body.Close()
		status <- resp.StatusCode
	}()

	<-started
	cancel()
	close(release)

	assert.Equal(t, http.StatusAccepted, <-status)
	assert.NoError(t, wait(t, done))
}
