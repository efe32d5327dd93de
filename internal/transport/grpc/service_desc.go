package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "schedula.v1.SchedulingService"

// SchedulingServiceServer is the server API of schedula.v1.SchedulingService.
// Requests and responses are google.protobuf.Struct documents.
type SchedulingServiceServer interface {
	CreateUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListUsers(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListProviders(context.Context, *structpb.Struct) (*structpb.Struct, error)

	ProposeReservation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResolveReservation(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	ListPendingReservations(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListApprovedReservations(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListReservationsForWeek(context.Context, *structpb.Struct) (*structpb.Struct, error)

	UpsertAvailability(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteAvailability(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListAvailability(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListAvailabilityForWeek(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSoonestAvailability(context.Context, *structpb.Struct) (*structpb.Struct, error)

	WatchChanges(*structpb.Struct, WatchChangesServer) error
}

type WatchChangesServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type watchChangesServer struct {
	grpc.ServerStream
}

func (x *watchChangesServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

type unaryCall func(srv SchedulingServiceServer, ctx context.Context, req *structpb.Struct) (any, error)

func unary(name string, call unaryCall) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(SchedulingServiceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*structpb.Struct))
			})
		},
	}
}

func watchChangesHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(SchedulingServiceServer).WatchChanges(in, &watchChangesServer{ServerStream: stream})
}

var SchedulingServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SchedulingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateUser", func(s SchedulingServiceServer, ctx context.Context, req *structpb.Struct) (any, error) {
			return s.CreateUser(ctx, req)
		}),
		unary("GetUser", func(s SchedulingServiceServer, ctx context.Context, req *structpb.Struct) (any, error) {
			return s.GetUser(ctx, req)
		}),
		unary("ListUsers", func(s SchedulingServiceServer, ctx context.Context, req *structpb.Struct) (any, error) {
			return s.ListUsers(ctx, req)
		}),
		unary("ListProviders", func(s SchedulingServiceServer, ctx context.Context, req *structpb.Struct) (any, error) {
			return s.ListProviders(ctx, req)
		}),
		unary("ProposeReservation", func(s SchedulingServiceServer, ctx context.Context, req *structpb.Struct) (any, error) {
			return s.ProposeReservation(ctx, req)
		}),
		unary("ResolveReservation", func(s SchedulingServiceServer, ctx context.Context, req *structpb.Struct) (any, error) {
			return s.ResolveReservation(ctx, req)
		}),
		unary("ListPendingReservations", func(s SchedulingServiceServer, ctx context.Context, req *structpb.Struct) (any, error) {
			return s.ListPendingReservations(ctx, req)
		}),
		unary("ListApprovedReservations", func(s SchedulingServiceServer, ctx context.Context, req *structpb.Struct) (any, error) {
			return s.ListApprovedReservations(ctx, req)
		}),
		unary("ListReservationsForWeek", func(s SchedulingServiceServer, ctx context.Context, req *structpb.Struct) (any, error) {
			return s.ListReservationsForWeek(ctx, req)
		}),
		unary("UpsertAvailability", func(s SchedulingServiceServer, ctx context.Context, req *structpb.Struct) (any, error) {
			return s.UpsertAvailability(ctx, req)
		}),
		unary("DeleteAvailability", func(s SchedulingServiceServer, ctx context.Context, req *structpb.Struct) (any, error) {
			return s.DeleteAvailability(ctx, req)
		}),
		unary("ListAvailability", func(s SchedulingServiceServer, ctx context.Context, req *structpb.Struct) (any, error) {
			return s.ListAvailability(ctx, req)
		}),
		unary("ListAvailabilityForWeek", func(s SchedulingServiceServer, ctx context.Context, req *structpb.Struct) (any, error) {
			return s.ListAvailabilityForWeek(ctx, req)
		}),
		unary("GetSoonestAvailability", func(s SchedulingServiceServer, ctx context.Context, req *structpb.Struct) (any, error) {
			return s.GetSoonestAvailability(ctx, req)
		}),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchChanges",
			Handler:       watchChangesHandler,
			ServerStreams: true,
		},
	},
	Metadata: "schedula/v1/scheduling.proto",
}

func RegisterSchedulingServiceServer(s grpc.ServiceRegistrar, srv SchedulingServiceServer) {
	s.RegisterService(&SchedulingServiceDesc, srv)
}
