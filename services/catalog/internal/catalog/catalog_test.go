package catalog

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/nimestream/nimestream/services/catalog/internal/cache"
	"github.com/nimestream/nimestream/services/catalog/internal/metrics"
	"github.com/nimestream/nimestream/services/catalog/internal/samehadaku"
)

type call struct {
	path  string
	query url.Values
}

type fakeUpstream struct {
	mu    sync.Mutex
	calls []call
	resp  *samehadaku.Response
	err   error
	// gate, when set, holds every fetch until it is closed.
	gate chan struct{}
}

func (f *fakeUpstream) Fetch(_ context.Context, path string, query url.Values) (*samehadaku.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{path: path, query: query})
	f.mu.Unlock()
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeUpstream) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func startConn(t *testing.T, srv *Server, opts ...grpc.ServerOption) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs, _ := NewGRPCServer(srv, opts...)
	go func() { _ = gs.Serve(lis) }()

	dial := append(DialOptions(),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	cc, err := grpc.NewClient("passthrough:///bufnet", dial...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = cc.Close()
		gs.Stop()
	})
	return cc
}

func startCatalog(t *testing.T, srv *Server, opts ...grpc.ServerOption) *Client {
	t.Helper()
	return NewClient(startConn(t, srv, opts...))
}

func TestFetchRelaysBodyAndQuery(t *testing.T) {
	up := &fakeUpstream{resp: &samehadaku.Response{
		Status:      http.StatusOK,
		ContentType: "application/json; charset=utf-8",
		Body:        []byte(`{"data":{"animeList":[{"title":"A"}]},"score":1.0}`),
	}}
	c := startCatalog(t, NewServer(up, ServerOptions{}))

	resp, err := c.Fetch(context.Background(), samehadaku.PathSearch, url.Values{"q": {"a b"}, "page": {"2"}, "tag": {"x", "y"}})
	require.NoError(t, err)

	// bytes pass through untouched, including number formatting
	assert.Equal(t, `{"data":{"animeList":[{"title":"A"}]},"score":1.0}`, string(resp.Body))
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "application/json; charset=utf-8", resp.ContentType)

	require.Equal(t, 1, up.count())
	assert.Equal(t, samehadaku.PathSearch, up.calls[0].path)
	assert.Equal(t, "a b", up.calls[0].query.Get("q"))
	assert.Equal(t, []string{"x", "y"}, up.calls[0].query["tag"])
}

func TestFetchWithoutQuery(t *testing.T) {
	up := &fakeUpstream{resp: &samehadaku.Response{Status: http.StatusOK, Body: []byte(`{}`)}}
	c := startCatalog(t, NewServer(up, ServerOptions{}))

	_, err := c.Fetch(context.Background(), samehadaku.PathHome, nil)
	require.NoError(t, err)
	assert.Nil(t, up.calls[0].query)
}

func TestFetchUpstreamStatusError(t *testing.T) {
	m := metrics.New()
	up := &fakeUpstream{err: &samehadaku.StatusError{Status: http.StatusNotFound}}
	c := startCatalog(t, NewServer(up, ServerOptions{Metrics: m}))

	_, err := c.Fetch(context.Background(), samehadaku.AnimePath("nope"), nil)
	var se *samehadaku.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamRequests.WithLabelValues("/samehadaku/anime/:id", "404")))
}

func TestFetchTransportError(t *testing.T) {
	up := &fakeUpstream{err: errors.New("dial tcp: connection refused")}
	c := startCatalog(t, NewServer(up, ServerOptions{}))

	_, err := c.Fetch(context.Background(), samehadaku.PathHome, nil)
	require.Error(t, err)
	var se *samehadaku.StatusError
	assert.False(t, errors.As(err, &se))
	assert.Equal(t, codes.Unavailable, status.Code(errors.Unwrap(err)))
}

func TestFetchRejectsForeignPaths(t *testing.T) {
	up := &fakeUpstream{}
	c := startCatalog(t, NewServer(up, ServerOptions{}))

	for _, p := range []string{"/admin", "", "/samehadaku/../secret", "/samehadaku/./home", "/samehadaku/anime/.."} {
		_, err := c.Fetch(context.Background(), p, nil)
		require.Error(t, err, p)
		assert.Equal(t, codes.InvalidArgument, status.Code(errors.Unwrap(err)), p)
	}
	assert.Equal(t, 0, up.count())
}

func TestFetchCachesSuccessfulBodies(t *testing.T) {
	m := metrics.New()
	mem := cache.NewMemory(time.Hour)
	defer mem.Close()

	up := &fakeUpstream{resp: &samehadaku.Response{Status: http.StatusOK, Body: []byte(`{"data":{}}`)}}
	c := startCatalog(t, NewServer(up, ServerOptions{Metrics: m, Cache: mem, CacheTTL: time.Minute}))

	q := url.Values{"page": {"1"}}
	for i := 0; i < 3; i++ {
		resp, err := c.Fetch(context.Background(), samehadaku.PathOngoing, q)
		require.NoError(t, err)
		assert.Equal(t, `{"data":{}}`, string(resp.Body))
	}
	assert.Equal(t, 1, up.count())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheHits))

	// a different page is a different key
	_, err := c.Fetch(context.Background(), samehadaku.PathOngoing, url.Values{"page": {"2"}})
	require.NoError(t, err)
	assert.Equal(t, 2, up.count())
}

func TestFetchDoesNotCacheFailures(t *testing.T) {
	mem := cache.NewMemory(time.Hour)
	defer mem.Close()

	up := &fakeUpstream{err: &samehadaku.StatusError{Status: http.StatusBadGateway}}
	c := startCatalog(t, NewServer(up, ServerOptions{Cache: mem, CacheTTL: time.Minute}))

	for i := 0; i < 2; i++ {
		_, err := c.Fetch(context.Background(), samehadaku.PathHome, nil)
		require.Error(t, err)
	}
	assert.Equal(t, 2, up.count())
	assert.Equal(t, 0, mem.Len())
}

func TestFetchWithoutCacheTTLAlwaysHitsUpstream(t *testing.T) {
	mem := cache.NewMemory(time.Hour)
	defer mem.Close()

	up := &fakeUpstream{resp: &samehadaku.Response{Status: http.StatusOK, Body: []byte(`{}`)}}
	c := startCatalog(t, NewServer(up, ServerOptions{Cache: mem}))

	for i := 0; i < 2; i++ {
		_, err := c.Fetch(context.Background(), samehadaku.PathHome, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, up.count())
}

func TestCodeFor(t *testing.T) {
	tests := map[int]codes.Code{
		400: codes.InvalidArgument,
		401: codes.Unauthenticated,
		403: codes.PermissionDenied,
		404: codes.NotFound,
		429: codes.ResourceExhausted,
		500: codes.Unavailable,
		503: codes.Unavailable,
		418: codes.Unknown,
	}
	for in, want := range tests {
		assert.Equal(t, want, codeFor(in), in)
	}
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "/samehadaku/home", routeLabel("/samehadaku/home"))
	assert.Equal(t, "/samehadaku/genres", routeLabel("/samehadaku/genres"))
	assert.Equal(t, "/samehadaku/genres/:id", routeLabel("/samehadaku/genres/action"))
	assert.Equal(t, "/samehadaku/episode/:id", routeLabel("/samehadaku/episode/a-b-1"))
}

func TestFetchAllowsDottedIDs(t *testing.T) {
	up := &fakeUpstream{resp: &samehadaku.Response{Status: http.StatusOK, Body: []byte(`{}`)}}
	c := startCatalog(t, NewServer(up, ServerOptions{}))

	_, err := c.Fetch(context.Background(), "/samehadaku/anime/k-on..movie", nil)
	require.NoError(t, err)
	require.Equal(t, 1, up.count())
	assert.Equal(t, "/samehadaku/anime/k-on..movie", up.calls[0].path)
}

func TestFetchRelaysBodiesLargerThanGRPCDefault(t *testing.T) {
	body := bytes.Repeat([]byte("a"), 5<<20)
	up := &fakeUpstream{resp: &samehadaku.Response{Status: http.StatusOK, Body: body}}
	c := startCatalog(t, NewServer(up, ServerOptions{}))

	resp, err := c.Fetch(context.Background(), samehadaku.PathHome, nil)
	require.NoError(t, err)
	assert.Len(t, resp.Body, len(body))
}

func TestFetchCoalescesConcurrentRequests(t *testing.T) {
	gate := make(chan struct{})
	up := &fakeUpstream{gate: gate, resp: &samehadaku.Response{Status: http.StatusOK, Body: []byte(`{"data":1}`)}}

	var entered atomic.Int32
	countCalls := grpc.UnaryInterceptor(func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		entered.Add(1)
		return handler(ctx, req)
	})
	c := startCatalog(t, NewServer(up, ServerOptions{}), countCalls)

	const n = 20
	var wg sync.WaitGroup
	bodies := make([]string, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := c.Fetch(context.Background(), samehadaku.PathOngoing, url.Values{"page": {"1"}})
			errs[i] = err
			if err == nil {
				bodies[i] = string(resp.Body)
			}
		}()
	}

	require.Eventually(t, func() bool { return entered.Load() == n }, 5*time.Second, time.Millisecond)
	// every handler is inside Fetch; give them a moment to join the flight
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i])
		assert.Equal(t, `{"data":1}`, bodies[i])
	}
	assert.Equal(t, 1, up.count())
}

func TestCacheHitKeepsUpstreamHeaders(t *testing.T) {
	mem := cache.NewMemory(time.Hour)
	defer mem.Close()

	up := &fakeUpstream{resp: &samehadaku.Response{
		Status:      http.StatusOK,
		ContentType: "application/json; charset=utf-8",
		Body:        []byte("{\"a\":\"x\ny\"}"),
	}}
	c := startCatalog(t, NewServer(up, ServerOptions{Cache: mem, CacheTTL: time.Minute}))

	for i := 0; i < 2; i++ {
		resp, err := c.Fetch(context.Background(), samehadaku.PathHome, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.Status)
		assert.Equal(t, "application/json; charset=utf-8", resp.ContentType)
		assert.Equal(t, "{\"a\":\"x\ny\"}", string(resp.Body))
	}
	assert.Equal(t, 1, up.count())
}

func TestDecodeCached(t *testing.T) {
	resp := decodeCached(encodeCached(&samehadaku.Response{Status: 203, ContentType: "text/plain", Body: []byte("a\nb")}))
	assert.Equal(t, 203, resp.Status)
	assert.Equal(t, "text/plain", resp.ContentType)
	assert.Equal(t, "a\nb", string(resp.Body))

	// entries without a header line are served as plain bodies
	resp = decodeCached([]byte(`{"old":true}`))
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, `{"old":true}`, string(resp.Body))
}

func TestHealthReportsServing(t *testing.T) {
	cc := startConn(t, NewServer(&fakeUpstream{}, ServerOptions{}))

	res, err := healthpb.NewHealthClient(cc).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, res.GetStatus())
}

func TestHasDotSegment(t *testing.T) {
	assert.True(t, hasDotSegment("/samehadaku/../x"))
	assert.True(t, hasDotSegment("/samehadaku/anime/."))
	assert.False(t, hasDotSegment("/samehadaku/anime/k-on..movie"))
	assert.False(t, hasDotSegment("/samehadaku/anime/.hack"))
}
