package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-plugin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const (
	PluginMapKey          = "resolver"
	serviceName           = "batteryusage.resolver.v1.PackageResolver"
	jsonCodecName         = "json"
	methodGetMetadata     = "/" + serviceName + "/GetMetadata"
	methodResolvePackages = "/" + serviceName + "/ResolvePackages"
)

var HandshakeConfig = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "BATTERYUSAGE_RESOLVER",
	MagicCookieValue: "batteryusage",
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return jsonCodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type Empty struct{}

type Metadata struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Packages int32  `json:"packages"`
}

type ResolveRequest struct {
	PackageNames []string `json:"package_names"`
	Locale       string   `json:"locale"`
}

type PackageRecord struct {
	PackageName string `json:"package_name"`
	Label       string `json:"label"`
	Installed   bool   `json:"installed"`
}

// ResolveResponse lists only the packages the resolver knows; absent names
// are unresolvable.
type ResolveResponse struct {
	Packages []PackageRecord `json:"packages"`
}

type PackageResolverServer interface {
	GetMetadata(ctx context.Context, in *Empty) (*Metadata, error)
	ResolvePackages(ctx context.Context, in *ResolveRequest) (*ResolveResponse, error)
}

type PackageResolverClient interface {
	GetMetadata(ctx context.Context) (*Metadata, error)
	ResolvePackages(ctx context.Context, in *ResolveRequest) (*ResolveResponse, error)
}

type packageResolverClient struct {
	conn *grpc.ClientConn
}

func NewPackageResolverClient(conn *grpc.ClientConn) PackageResolverClient {
	return &packageResolverClient{conn: conn}
}

func (c *packageResolverClient) GetMetadata(ctx context.Context) (*Metadata, error) {
	out := &Metadata{}
	if err := c.conn.Invoke(ctx, methodGetMetadata, &Empty{}, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *packageResolverClient) ResolvePackages(ctx context.Context, in *ResolveRequest) (*ResolveResponse, error) {
	out := &ResolveResponse{}
	if err := c.conn.Invoke(ctx, methodResolvePackages, in, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func RegisterPackageResolverServer(server grpc.ServiceRegistrar, impl PackageResolverServer) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*PackageResolverServer)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "GetMetadata",
				Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
					in := &Empty{}
					if err := dec(in); err != nil {
						return nil, err
					}
					if interceptor == nil {
						return impl.GetMetadata(ctx, in)
					}
					info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetMetadata}
					handler := func(ctx context.Context, req any) (any, error) {
						empty, ok := req.(*Empty)
						if !ok {
							return nil, fmt.Errorf("invalid request type")
						}
						return impl.GetMetadata(ctx, empty)
					}
					return interceptor(ctx, in, info, handler)
				},
			},
			{
				MethodName: "ResolvePackages",
				Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
					in := &ResolveRequest{}
					if err := dec(in); err != nil {
						return nil, err
					}
					if interceptor == nil {
						return impl.ResolvePackages(ctx, in)
					}
					info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodResolvePackages}
					handler := func(ctx context.Context, req any) (any, error) {
						inReq, ok := req.(*ResolveRequest)
						if !ok {
							return nil, fmt.Errorf("invalid request type")
						}
						return impl.ResolvePackages(ctx, inReq)
					}
					return interceptor(ctx, in, info, handler)
				},
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "schemas/resolver-rpc-v1.proto",
	}, impl)
}

type GRPCPlugin struct {
	plugin.NetRPCUnsupportedPlugin
	Impl PackageResolverServer
}

func (p *GRPCPlugin) GRPCServer(_ *plugin.GRPCBroker, server *grpc.Server) error {
	RegisterPackageResolverServer(server, p.Impl)
	return nil
}

func (p *GRPCPlugin) GRPCClient(_ context.Context, _ *plugin.GRPCBroker, conn *grpc.ClientConn) (any, error) {
	return NewPackageResolverClient(conn), nil
}

func PluginMap(impl PackageResolverServer) map[string]plugin.Plugin {
	return map[string]plugin.Plugin{
		PluginMapKey: &GRPCPlugin{Impl: impl},
	}
}
