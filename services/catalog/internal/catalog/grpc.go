package catalog

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/nimestream/nimestream/services/catalog/internal/samehadaku"
)

// MaxMessageBytes fits the largest upstream body plus the BytesValue framing.
const MaxMessageBytes = samehadaku.MaxBodyBytes + 1<<10

// DialOptions must be passed to grpc.NewClient when dialing the catalog;
// gRPC's default 4 MiB receive limit is smaller than an upstream body may be.
func DialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(MaxMessageBytes)),
	}
}

// NewGRPCServer returns a grpc.Server carrying the catalog service and the
// standard health service, with the catalog reported as SERVING.
func NewGRPCServer(srv CatalogServer, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	gs := grpc.NewServer(opts...)
	RegisterCatalogServer(gs, srv)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return gs, hs
}
