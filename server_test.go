// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpq

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogama/httpq/request"
	"github.com/gogama/httpq/retry"
	"github.com/gogama/httpq/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, settings Settings) *Client {
	t.Helper()
	c := New(settings)
	t.Cleanup(c.Stop)
	return c
}

func TestIntegrationSimpleGET(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("hello from the test server"))
	}))
	defer server.Close()

	c := newTestClient(t, Settings{PollTimeout: 10 * time.Millisecond})
	req, err := request.New("GET", server.URL, nil)
	require.NoError(t, err)

	handle, err := c.Submit(req, nil, nil)
	require.NoError(t, err)
	resp, err := handle.Result()
	require.NoError(t, err)

	assert.Equal(t, 200, resp.Status)
	assert.NotEmpty(t, resp.Body)
	assert.Empty(t, resp.Error)
	assert.Equal(t, 1, handle.AttemptCount())
	assert.Equal(t, "text/plain", resp.Header("Content-Type"))
	assert.Greater(t, resp.Info.Total, time.Duration(0))
	assert.Greater(t, resp.Info.TTFB, time.Duration(0))
	assert.False(t, resp.Info.StartAt.IsZero())
	assert.False(t, resp.Info.CompletedAt.IsZero())
}

func TestIntegrationPost(t *testing.T) {
	var received []byte
	var contentLength int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentLength = r.ContentLength
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(r.Body)
		received = buf.Bytes()
		w.WriteHeader(201)
	}))
	defer server.Close()

	c := newTestClient(t, Settings{PollTimeout: 10 * time.Millisecond})
	resp, err := Post(c, server.URL, "application/json", `{"n":1}`)
	require.NoError(t, err)
	assert.Equal(t, 201, resp.Status)
	assert.Equal(t, []byte(`{"n":1}`), received)
	assert.Equal(t, int64(7), contentLength, "body is sent with declared length")
}

func TestIntegrationCancelMidFlight(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	c := newTestClient(t, Settings{PollTimeout: 10 * time.Millisecond})
	req, err := request.New("GET", server.URL, nil)
	require.NoError(t, err)
	handle, err := c.Submit(req, nil, nil)
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)
	start := time.Now()
	handle.Cancel()
	_, err = handle.Result()
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Less(t, time.Since(start), 2*time.Second, "cancellation takes effect within a few poll quanta")
	assert.Equal(t, CancelRequested, handle.State())
}

func TestIntegrationRetry503Then200(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(503)
			return
		}
		_, _ = w.Write([]byte("recovered"))
	}))
	defer server.Close()

	c := newTestClient(t, Settings{PollTimeout: 10 * time.Millisecond})
	req, err := request.New("GET", server.URL, nil)
	require.NoError(t, err)

	const delay = 200 * time.Millisecond
	policy := retry.Policy{
		MaxRetries:  3,
		ShouldRetry: retry.StatusCode(500, 502, 503, 504),
		NextRetryAt: retry.FixedDelay(delay),
	}
	handle, err := c.Submit(req, nil, &policy)
	require.NoError(t, err)
	resp, err := handle.Result()
	require.NoError(t, err)

	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, []byte("recovered"), resp.Body)
	assert.Equal(t, 3, handle.AttemptCount())

	ctx := handle.RetryContext()
	require.Equal(t, 3, ctx.AttemptCount())
	for i := 1; i < ctx.AttemptCount(); i++ {
		gap := ctx.Attempts[i].CompleteAt.Sub(ctx.Attempts[i-1].CompleteAt)
		assert.GreaterOrEqual(t, gap, delay)
	}
}

func TestIntegrationRetryExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(503)
	}))
	defer server.Close()

	c := newTestClient(t, Settings{PollTimeout: 10 * time.Millisecond})
	req, err := request.New("GET", server.URL, nil)
	require.NoError(t, err)

	policy := retry.Policy{
		MaxRetries:  2,
		ShouldRetry: retry.StatusCode(),
		NextRetryAt: retry.FixedDelay(50 * time.Millisecond),
	}
	handle, err := c.Submit(req, nil, &policy)
	require.NoError(t, err)
	resp, err := handle.Result()
	require.NoError(t, err, "exhaustion resolves the future with the final response")
	assert.Equal(t, 503, resp.Status)
	assert.Equal(t, 3, handle.AttemptCount())
	assert.Equal(t, Completed, handle.State())
}

// slowBodyHandler writes total bytes in chunked installments, pausing
// between chunks, so tests can pause and resume mid-body.
func slowBodyHandler(total, chunk int, pause time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		f := w.(http.Flusher)
		payload := bytes.Repeat([]byte("x"), chunk)
		for sent := 0; sent < total; sent += chunk {
			if _, err := w.Write(payload); err != nil {
				return
			}
			f.Flush()
			time.Sleep(pause)
		}
	})
}

func TestIntegrationPauseResume(t *testing.T) {
	const bodyLen = 1000
	server := httptest.NewServer(slowBodyHandler(bodyLen, 100, 150*time.Millisecond))
	defer server.Close()

	c := newTestClient(t, Settings{PollTimeout: 10 * time.Millisecond, BufferSize: 1024})
	req, err := request.New("GET", server.URL, nil)
	require.NoError(t, err)

	handle, err := c.Submit(req, nil, nil)
	require.NoError(t, err)

	time.Sleep(300 * time.Millisecond)
	handle.Pause()
	assert.Eventually(t, func() bool { return handle.State() == Paused },
		2*time.Second, 5*time.Millisecond, "pause takes effect within a poll quantum")

	time.Sleep(400 * time.Millisecond)
	handle.Resume()
	assert.Eventually(t, func() bool { return handle.State() == Ongoing },
		2*time.Second, 5*time.Millisecond)

	resp, err := handle.Result()
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.Len(t, resp.Body, bodyLen, "pause/resume preserves the body")

	// An unpaused transfer of the same content yields the same bytes.
	baseline, err := c.Request(req, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, baseline.Body, resp.Body)
}

func TestIntegrationConcurrencyCap(t *testing.T) {
	const maxConns = 4
	const transfers = 16

	var active, highWater int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&active, 1)
		for {
			hw := atomic.LoadInt32(&highWater)
			if n <= hw || atomic.CompareAndSwapInt32(&highWater, hw, n) {
				break
			}
		}
		time.Sleep(100 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		w.WriteHeader(200)
	}))
	defer server.Close()

	c := newTestClient(t, Settings{
		MaxConnections:      maxConns,
		MaxHostConnections:  transfers,
		MaxTotalConnections: transfers,
		PollTimeout:         10 * time.Millisecond,
	})
	req, err := request.New("GET", server.URL, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < transfers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := c.Request(req, nil, nil)
			assert.NoError(t, err)
			assert.Equal(t, 200, resp.Status)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&highWater), int32(maxConns))
}

func TestIntegrationTotalTimeout(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(503)
	}))
	defer server.Close()

	c := newTestClient(t, Settings{PollTimeout: 10 * time.Millisecond})
	req, err := request.New("GET", server.URL, nil)
	require.NoError(t, err)

	policy := retry.Policy{
		MaxRetries:   100,
		TotalTimeout: 500 * time.Millisecond,
		ShouldRetry:  retry.StatusCode(),
		NextRetryAt:  retry.FixedDelay(200 * time.Millisecond),
	}
	start := time.Now()
	handle, err := c.Submit(req, nil, &policy)
	require.NoError(t, err)
	resp, err := handle.Result()
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, 503, resp.Status)
	assert.LessOrEqual(t, handle.AttemptCount(), 3, "the total budget caps the attempt count")
	assert.Less(t, elapsed, 2*time.Second, "resolution within the budget plus one attempt")
}

func TestIntegrationAttemptTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(5 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	c := newTestClient(t, Settings{PollTimeout: 10 * time.Millisecond})
	req, err := request.New("GET", server.URL, nil)
	require.NoError(t, err)

	handle, err := c.Submit(req, &request.Policy{Timeout: 300 * time.Millisecond}, nil)
	require.NoError(t, err)
	resp, err := handle.Result()
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Status)
	assert.NotEmpty(t, resp.Error)
	assert.Equal(t, Failed, handle.State())
}

func TestIntegrationLowSpeedAbort(t *testing.T) {
	server := httptest.NewServer(slowBodyHandler(10_000, 1, 300*time.Millisecond))
	defer server.Close()

	c := newTestClient(t, Settings{PollTimeout: 10 * time.Millisecond})
	req, err := request.New("GET", server.URL, nil)
	require.NoError(t, err)

	policy := &request.Policy{
		LowSpeedLimit: 10_000,
		LowSpeedTime:  500 * time.Millisecond,
	}
	start := time.Now()
	resp, err := c.Request(req, policy, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Error, "transfer below the throughput floor is aborted")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestIntegrationTransientErrRetry(t *testing.T) {
	// A connection to a closed port fails fast; the default condition
	// treats it as transient.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := newTestClient(t, Settings{PollTimeout: 10 * time.Millisecond})
	req, err := request.New("GET", url, nil)
	require.NoError(t, err)

	policy := retry.Policy{
		MaxRetries:  2,
		ShouldRetry: retry.TransientErr,
		NextRetryAt: retry.FixedDelay(20 * time.Millisecond),
	}
	handle, err := c.Submit(req, nil, &policy)
	require.NoError(t, err)
	resp, err := handle.Result()
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Error)
	assert.Equal(t, 3, handle.AttemptCount(), "transient transport failures burn the whole budget")

	ctx := handle.RetryContext()
	for _, attempt := range ctx.Attempts {
		assert.True(t, attempt.Code.Transient(), attempt.Code.String())
	}
}

func TestIntegrationHTTPS(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("secure"))
	}))
	defer server.Close()

	pool := x509.NewCertPool()
	pool.AddCert(server.Certificate())
	driver := transport.New(transport.Options{TLSConfig: &tls.Config{RootCAs: pool}})

	c := NewWithDriver(Settings{PollTimeout: 10 * time.Millisecond}, driver)
	defer c.Stop()

	req, err := request.New("GET", server.URL, nil)
	require.NoError(t, err)
	resp, err := c.Request(req, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, []byte("secure"), resp.Body)
	assert.Greater(t, resp.Info.TLSHandshake, time.Duration(0))
}
