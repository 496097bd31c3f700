// Package catalog exposes the upstream catalog over gRPC. There is no
// protoc step: the service descriptor is declared by hand and the messages
// are protobuf well-known types, so the wire format is plain protobuf.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName = "catalog.v1.Catalog"

	fetchMethod = "/" + ServiceName + "/Fetch"

	mdUpstreamStatus      = "x-upstream-status"
	mdUpstreamContentType = "x-upstream-content-type"

	pathPrefix = "/samehadaku/"
)

// CatalogServer is the server API for the catalog.v1.Catalog service.
type CatalogServer interface {
	// Fetch relays one GET to the upstream and returns the raw body.
	Fetch(context.Context, *structpb.Struct) (*wrapperspb.BytesValue, error)
}

func RegisterCatalogServer(s grpc.ServiceRegistrar, srv CatalogServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func fetchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogServer).Fetch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: fetchMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CatalogServer).Fetch(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CatalogServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Fetch",
			Handler:    fetchHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "catalog/v1/catalog.proto",
}

func newFetchRequest(path string, query url.Values) (*structpb.Struct, error) {
	q := make(map[string]any, len(query))
	for k, vs := range query {
		list := make([]any, len(vs))
		for i, v := range vs {
			list[i] = v
		}
		q[k] = list
	}
	return structpb.NewStruct(map[string]any{
		"path":  path,
		"query": q,
	})
}

func parseFetchRequest(req *structpb.Struct) (string, url.Values, error) {
	fields := req.GetFields()
	path := fields["path"].GetStringValue()
	if !strings.HasPrefix(path, pathPrefix) || hasDotSegment(path) {
		return "", nil, fmt.Errorf("path %q is not a catalog path", path)
	}

	var query url.Values
	if qs := fields["query"].GetStructValue().GetFields(); len(qs) > 0 {
		query = make(url.Values, len(qs))
		for k, v := range qs {
			for _, item := range v.GetListValue().GetValues() {
				query.Add(k, item.GetStringValue())
			}
		}
	}
	return path, query, nil
}

// hasDotSegment reports a "." or ".." path segment. Ids that merely contain
// dots, like k-on..movie, are fine.
func hasDotSegment(path string) bool {
	for _, seg := range strings.Split(path, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}

// codeFor maps an upstream HTTP status onto the closest gRPC code.
func codeFor(status int) codes.Code {
	switch {
	case status == http.StatusBadRequest:
		return codes.InvalidArgument
	case status == http.StatusUnauthorized:
		return codes.Unauthenticated
	case status == http.StatusForbidden:
		return codes.PermissionDenied
	case status == http.StatusNotFound:
		return codes.NotFound
	case status == http.StatusTooManyRequests:
		return codes.ResourceExhausted
	case status >= 500:
		return codes.Unavailable
	default:
		return codes.Unknown
	}
}

func statusFromMD(values []string) (int, error) {
	if len(values) == 0 {
		return 0, errors.New("missing")
	}
	return strconv.Atoi(values[0])
}
