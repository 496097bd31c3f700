package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/nimestream/nimestream/services/catalog/internal/samehadaku"
)

// Client is the gateway side of the catalog service. It satisfies
// samehadaku.Fetcher, so typed readers work the same over gRPC as over HTTP.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Fetch(ctx context.Context, path string, query url.Values) (*samehadaku.Response, error) {
	in, err := newFetchRequest(path, query)
	if err != nil {
		return nil, fmt.Errorf("encode fetch request: %w", err)
	}

	var header, trailer metadata.MD
	out := new(wrapperspb.BytesValue)
	err = c.cc.Invoke(ctx, fetchMethod, in, out, grpc.Header(&header), grpc.Trailer(&trailer))
	if err != nil {
		if code, perr := statusFromMD(trailer.Get(mdUpstreamStatus)); perr == nil {
			return nil, &samehadaku.StatusError{Status: code}
		}
		return nil, fmt.Errorf("catalog fetch %s: %w", path, err)
	}

	resp := &samehadaku.Response{
		Status:      http.StatusOK,
		ContentType: "application/json",
		Body:        out.GetValue(),
	}
	if code, perr := statusFromMD(header.Get(mdUpstreamStatus)); perr == nil {
		resp.Status = code
	}
	if ct := header.Get(mdUpstreamContentType); len(ct) > 0 && ct[0] != "" {
		resp.ContentType = ct[0]
	}
	return resp, nil
}
