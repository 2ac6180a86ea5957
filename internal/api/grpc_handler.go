package api

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"classifieds-template-service/internal/catalog"
	"classifieds-template-service/internal/store"
	"classifieds-template-service/internal/wizard"
)

const TemplateServiceName = "classifieds.v1.TemplateService"

// TemplateServiceServer is the read side of the template engine for other
// services. Requests and responses are google.protobuf.Struct messages.
type TemplateServiceServer interface {
	// ResolveTemplate takes {"category": ref}.
	ResolveTemplate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	// RenderListing takes {"listing_id": n, "view": "detail"|"review"}.
	RenderListing(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	// ResolveCategory takes {"ref": slug, name or id}.
	ResolveCategory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func unaryHandler(method string, call func(TemplateServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(TemplateServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + TemplateServiceName + "/" + method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(TemplateServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// TemplateServiceDesc describes the service for grpc.Server.RegisterService.
var TemplateServiceDesc = grpc.ServiceDesc{
	ServiceName: TemplateServiceName,
	HandlerType: (*TemplateServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ResolveTemplate", Handler: unaryHandler("ResolveTemplate", TemplateServiceServer.ResolveTemplate)},
		{MethodName: "RenderListing", Handler: unaryHandler("RenderListing", TemplateServiceServer.RenderListing)},
		{MethodName: "ResolveCategory", Handler: unaryHandler("ResolveCategory", TemplateServiceServer.ResolveCategory)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "classifieds/v1/template_service.proto",
}

func RegisterTemplateServiceServer(s grpc.ServiceRegistrar, srv TemplateServiceServer) {
	s.RegisterService(&TemplateServiceDesc, srv)
}

// TemplateServiceClient calls the service over a client connection.
type TemplateServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewTemplateServiceClient(cc grpc.ClientConnInterface) *TemplateServiceClient {
	return &TemplateServiceClient{cc: cc}
}

func (c *TemplateServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+TemplateServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *TemplateServiceClient) ResolveTemplate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ResolveTemplate", in, opts...)
}

func (c *TemplateServiceClient) RenderListing(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "RenderListing", in, opts...)
}

func (c *TemplateServiceClient) ResolveCategory(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ResolveCategory", in, opts...)
}

// GRPCHandler implements TemplateServiceServer.
type GRPCHandler struct {
	backend Backend
	logger  *zap.Logger
}

func NewGRPCHandler(backend Backend) *GRPCHandler {
	return &GRPCHandler{backend: backend, logger: backend.logger()}
}

// --- Helper: Error Mapping ---
func (s *GRPCHandler) mapErrorToGrpcStatus(err error, what string) error {
	switch {
	case errors.Is(err, catalog.ErrCategoryNotFound), errors.Is(err, store.ErrCategoryNotFound),
		errors.Is(err, store.ErrListingNotFound):
		return status.Errorf(codes.NotFound, "%s not found", what)
	case errors.Is(err, wizard.ErrNoTemplate):
		return status.Errorf(codes.FailedPrecondition, "%s: %v", what, err)
	default:
		s.logger.Error("grpc request failed", zap.String("resource", what), zap.Error(err))
		return status.Errorf(codes.Internal, "failed to process request for %s", what)
	}
}

// toStruct converts any JSON-encodable value into a Struct.
func toStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func stringField(req *structpb.Struct, name string) string {
	v, ok := req.GetFields()[name]
	if !ok {
		return ""
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return kind.StringValue
	case *structpb.Value_NumberValue:
		return strconv.FormatInt(int64(kind.NumberValue), 10)
	}
	return ""
}

func (s *GRPCHandler) ResolveTemplate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ref := stringField(req, "category")
	if ref == "" {
		return nil, status.Error(codes.InvalidArgument, "category is required")
	}
	category, resolved, err := s.backend.templateFor(ctx, ref)
	if err != nil {
		return nil, s.mapErrorToGrpcStatus(err, "category "+ref)
	}
	if !resolved.Configured() {
		return nil, s.mapErrorToGrpcStatus(wizard.ErrNoTemplate, "category "+ref)
	}
	return toStruct(map[string]interface{}{
		"category":    category,
		"template":    resolved.Template,
		"steps":       resolved.Steps,
		"shared_keys": resolved.SharedKeys,
	})
}

func (s *GRPCHandler) RenderListing(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := strconv.ParseInt(stringField(req, "listing_id"), 10, 64)
	if err != nil || id <= 0 {
		return nil, status.Error(codes.InvalidArgument, "listing_id must be a positive integer")
	}
	what := "listing " + strconv.FormatInt(id, 10)

	switch view := stringField(req, "view"); view {
	case "", "detail":
		detail, err := s.backend.detail(ctx, id)
		if err != nil {
			return nil, s.mapErrorToGrpcStatus(err, what)
		}
		return toStruct(detail)
	case "review":
		review, err := s.backend.review(ctx, id)
		if err != nil {
			return nil, s.mapErrorToGrpcStatus(err, what)
		}
		return toStruct(review)
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown view %q", view)
	}
}

func (s *GRPCHandler) ResolveCategory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ref := stringField(req, "ref")
	if ref == "" {
		return nil, status.Error(codes.InvalidArgument, "ref is required")
	}
	category, err := s.backend.Catalog.ResolveCategory(ctx, ref)
	if err != nil {
		return nil, s.mapErrorToGrpcStatus(err, "category "+ref)
	}
	return toStruct(category)
}
