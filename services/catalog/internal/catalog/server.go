package catalog

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/nimestream/nimestream/services/catalog/internal/cache"
	"github.com/nimestream/nimestream/services/catalog/internal/metrics"
	"github.com/nimestream/nimestream/services/catalog/internal/samehadaku"
)

type ServerOptions struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics

	// Cache is consulted only when CacheTTL is positive.
	Cache    cache.Cache
	CacheTTL time.Duration
}

type Server struct {
	upstream samehadaku.Fetcher
	logger   *zap.Logger
	metrics  *metrics.Metrics
	cache    cache.Cache
	ttl      time.Duration
	group    singleflight.Group
}

func NewServer(upstream samehadaku.Fetcher, opts ServerOptions) *Server {
	s := &Server{
		upstream: upstream,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		cache:    opts.Cache,
		ttl:      opts.CacheTTL,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.cache == nil {
		s.ttl = 0
	}
	return s
}

func (s *Server) Fetch(ctx context.Context, req *structpb.Struct) (*wrapperspb.BytesValue, error) {
	path, query, err := parseFetchRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	key := path
	if len(query) > 0 {
		key += "?" + query.Encode()
	}

	if s.ttl > 0 {
		b, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		if ok {
			s.metrics.CacheHits.Inc()
			resp := decodeCached(b)
			_ = grpc.SetHeader(ctx, metadata.Pairs(
				mdUpstreamStatus, strconv.Itoa(resp.Status),
				mdUpstreamContentType, resp.ContentType,
			))
			return wrapperspb.Bytes(resp.Body), nil
		}
	}

	ch := s.group.DoChan(key, func() (any, error) {
		// shared by all waiters, so it must outlive this caller
		fctx := context.WithoutCancel(ctx)
		resp, err := s.fetchUpstream(fctx, path, query)
		if err == nil && s.ttl > 0 {
			if err := s.cache.Set(fctx, key, encodeCached(resp), s.ttl); err != nil {
				s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
			}
		}
		return resp, err
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, status.FromContextError(ctx.Err()).Err()
	case res = <-ch:
	}

	if res.Err != nil {
		var se *samehadaku.StatusError
		if errors.As(res.Err, &se) {
			_ = grpc.SetTrailer(ctx, metadata.Pairs(mdUpstreamStatus, strconv.Itoa(se.Status)))
			return nil, status.Error(codeFor(se.Status), se.Error())
		}
		return nil, status.Error(codes.Unavailable, res.Err.Error())
	}

	resp := res.Val.(*samehadaku.Response)
	_ = grpc.SetHeader(ctx, metadata.Pairs(
		mdUpstreamStatus, strconv.Itoa(resp.Status),
		mdUpstreamContentType, resp.ContentType,
	))
	return wrapperspb.Bytes(resp.Body), nil
}

func (s *Server) fetchUpstream(ctx context.Context, path string, query url.Values) (*samehadaku.Response, error) {
	start := time.Now()
	resp, err := s.upstream.Fetch(ctx, path, query)
	label := routeLabel(path)
	if err != nil {
		outcome := "error"
		var se *samehadaku.StatusError
		if errors.As(err, &se) {
			outcome = strconv.Itoa(se.Status)
		}
		s.metrics.UpstreamRequests.WithLabelValues(label, outcome).Inc()
		s.logger.Warn("upstream fetch failed",
			zap.String("path", path),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return nil, err
	}
	s.metrics.UpstreamRequests.WithLabelValues(label, strconv.Itoa(resp.Status)).Inc()
	s.logger.Debug("upstream fetch",
		zap.String("path", path),
		zap.Int("bytes", len(resp.Body)),
		zap.Duration("duration", time.Since(start)))
	return resp, nil
}

// Cached entries are "<status> <content-type>\n<body>" so a hit replays the
// same header metadata as the original fetch.
func encodeCached(resp *samehadaku.Response) []byte {
	head := strconv.Itoa(resp.Status) + " " + resp.ContentType + "\n"
	return append([]byte(head), resp.Body...)
}

func decodeCached(b []byte) *samehadaku.Response {
	resp := &samehadaku.Response{Status: http.StatusOK, Body: b}
	head, body, ok := bytes.Cut(b, []byte("\n"))
	if !ok {
		return resp
	}
	code, ct, _ := strings.Cut(string(head), " ")
	status, err := strconv.Atoi(code)
	if err != nil {
		return resp
	}
	resp.Status = status
	resp.ContentType = ct
	resp.Body = body
	return resp
}

// routeLabel collapses id segments: /samehadaku/anime/x -> /samehadaku/anime/:id.
func routeLabel(path string) string {
	parts := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 3)
	if len(parts) == 3 {
		return "/" + parts[0] + "/" + parts[1] + "/:id"
	}
	return path
}
