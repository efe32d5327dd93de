package grpc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"schedula/reservations/internal/domain"
	"schedula/reservations/internal/events"
	"schedula/reservations/internal/service/scheduling"
)

type SchedulingServer struct {
	svc    schedulingService
	bus    subscriber
	resync time.Duration
	now    func() time.Time
	log    *slog.Logger
}

var _ SchedulingServiceServer = (*SchedulingServer)(nil)

type schedulingService interface {
	CreateUser(ctx context.Context, in scheduling.CreateUserInput) (domain.User, error)
	GetUser(ctx context.Context, id int64) (domain.User, error)
	ListUsers(ctx context.Context) []domain.User
	ListUsersByRole(ctx context.Context, role domain.Role) []domain.User

	ProposeReservation(ctx context.Context, in scheduling.ProposeInput) (domain.Reservation, error)
	ResolveReservation(ctx context.Context, in scheduling.ResolveInput) error
	PendingReservations(ctx context.Context, userID int64) []domain.Reservation
	ApprovedReservations(ctx context.Context, userID int64) []domain.Reservation
	ReservationsForWeek(ctx context.Context, userID int64, ref time.Time) []domain.Reservation

	AddOrUpdateAvailability(ctx context.Context, in scheduling.AvailabilityInput) (domain.Availability, bool, error)
	DeleteAvailability(ctx context.Context, availabilityID int64) (int, error)
	ListAvailability(ctx context.Context, userID int64) []domain.Availability
	AvailabilityForWeek(ctx context.Context, userID int64, ref time.Time) []domain.Availability
	SoonestAvailability(ctx context.Context, providerID int64) (domain.Soonest, error)

	Location() *time.Location
}

type subscriber interface {
	Subscribe(buffer int, kinds ...events.Kind) (<-chan events.Kind, func())
}

type ServerOptions struct {
	// ResyncInterval is how often WatchChanges emits a resync event; zero
	// disables it.
	ResyncInterval time.Duration
	Now            func() time.Time
}

func NewSchedulingServer(svc schedulingService, bus subscriber, opts ServerOptions, log *slog.Logger) *SchedulingServer {
	if log == nil {
		log = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SchedulingServer{
		svc:    svc,
		bus:    bus,
		resync: opts.ResyncInterval,
		now:    opts.Now,
		log:    log.With(slog.String("component", "grpc.scheduling")),
	}
}

func (s *SchedulingServer) CreateUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "CreateUser"))

	name, err := stringField(req, "name")
	if err != nil {
		return nil, s.toStatus(log, err)
	}
	role, err := stringField(req, "role")
	if err != nil {
		return nil, s.toStatus(log, err)
	}

	u, err := s.svc.CreateUser(ctx, scheduling.CreateUserInput{Name: name, Role: domain.Role(role)})
	if err != nil {
		return nil, s.toStatus(log, err)
	}
	log.Info("user created", slog.Int64("user_id", u.ID), slog.String("role", string(u.Role)))
	return newStruct(map[string]any{"user": userValue(u)})
}

func (s *SchedulingServer) GetUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "GetUser"))

	id, err := int64Field(req, "user_id")
	if err != nil {
		return nil, s.toStatus(log, err)
	}
	u, err := s.svc.GetUser(ctx, id)
	if err != nil {
		return nil, s.toStatus(log, err)
	}
	return newStruct(map[string]any{"user": userValue(u)})
}

func (s *SchedulingServer) ListUsers(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	users := s.svc.ListUsers(ctx)
	return newStruct(map[string]any{"users": listOf(users, userValue)})
}

func (s *SchedulingServer) ListProviders(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	users := s.svc.ListUsersByRole(ctx, domain.RoleProvider)
	return newStruct(map[string]any{"users": listOf(users, userValue)})
}

func (s *SchedulingServer) ProposeReservation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "ProposeReservation"))

	var in scheduling.ProposeInput
	var err error
	if in.RequesterID, err = int64Field(req, "requester_id"); err != nil {
		return nil, s.toStatus(log, err)
	}
	if in.ProviderID, err = int64Field(req, "provider_id"); err != nil {
		return nil, s.toStatus(log, err)
	}
	err = readStrings(req, []stringDst{
		{"name", &in.Name},
		{"date", &in.Date},
		{"start_time", &in.StartTime},
		{"end_time", &in.EndTime},
	})
	if err != nil {
		return nil, s.toStatus(log, err)
	}

	r, err := s.svc.ProposeReservation(ctx, in)
	if err != nil {
		return nil, s.toStatus(log, err)
	}
	return newStruct(map[string]any{"reservation": reservationValue(r)})
}

func (s *SchedulingServer) ResolveReservation(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	log := s.log.With(slog.String("rpc", "ResolveReservation"))

	id, err := int64Field(req, "reservation_id")
	if err != nil {
		return nil, s.toStatus(log, err)
	}
	actor, err := int64Field(req, "actor_id")
	if err != nil {
		return nil, s.toStatus(log, err)
	}
	decision, err := stringField(req, "decision")
	if err != nil {
		return nil, s.toStatus(log, err)
	}

	err = s.svc.ResolveReservation(ctx, scheduling.ResolveInput{
		ReservationID: id,
		Decision:      domain.ReservationStatus(decision),
		ActorID:       actor,
	})
	if err != nil {
		return nil, s.toStatus(log, err)
	}
	return &emptypb.Empty{}, nil
}

func (s *SchedulingServer) ListPendingReservations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "ListPendingReservations"))

	userID, err := int64Field(req, "user_id")
	if err != nil {
		return nil, s.toStatus(log, err)
	}
	rows := s.svc.PendingReservations(ctx, userID)
	return newStruct(map[string]any{"reservations": listOf(rows, reservationValue)})
}

func (s *SchedulingServer) ListApprovedReservations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "ListApprovedReservations"))

	userID, err := int64Field(req, "user_id")
	if err != nil {
		return nil, s.toStatus(log, err)
	}
	rows := s.svc.ApprovedReservations(ctx, userID)
	return newStruct(map[string]any{"reservations": listOf(rows, reservationValue)})
}

func (s *SchedulingServer) ListReservationsForWeek(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "ListReservationsForWeek"))

	userID, ref, err := s.weekRequest(req)
	if err != nil {
		return nil, s.toStatus(log, err)
	}
	week := domain.WeekOf(ref.In(s.svc.Location()))
	rows := s.svc.ReservationsForWeek(ctx, userID, ref)
	return newStruct(map[string]any{
		"week_start":   week.Start,
		"week_end":     week.End,
		"reservations": listOf(rows, reservationValue),
	})
}

func (s *SchedulingServer) UpsertAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "UpsertAvailability"))

	var in scheduling.AvailabilityInput
	var err error
	if in.UserID, err = int64Field(req, "user_id"); err != nil {
		return nil, s.toStatus(log, err)
	}
	err = readStrings(req, []stringDst{
		{"date", &in.Date},
		{"start_time", &in.StartTime},
		{"end_time", &in.EndTime},
	})
	if err != nil {
		return nil, s.toStatus(log, err)
	}

	a, created, err := s.svc.AddOrUpdateAvailability(ctx, in)
	if err != nil {
		return nil, s.toStatus(log, err)
	}
	return newStruct(map[string]any{"availability": availabilityValue(a), "created": created})
}

func (s *SchedulingServer) DeleteAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "DeleteAvailability"))

	id, err := int64Field(req, "availability_id")
	if err != nil {
		return nil, s.toStatus(log, err)
	}
	denied, err := s.svc.DeleteAvailability(ctx, id)
	if err != nil {
		return nil, s.toStatus(log, err)
	}
	return newStruct(map[string]any{"denied_reservations": denied})
}

func (s *SchedulingServer) ListAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "ListAvailability"))

	userID, err := int64Field(req, "user_id")
	if err != nil {
		return nil, s.toStatus(log, err)
	}
	rows := s.svc.ListAvailability(ctx, userID)
	return newStruct(map[string]any{"availability": listOf(rows, availabilityValue)})
}

func (s *SchedulingServer) ListAvailabilityForWeek(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "ListAvailabilityForWeek"))

	userID, ref, err := s.weekRequest(req)
	if err != nil {
		return nil, s.toStatus(log, err)
	}
	week := domain.WeekOf(ref.In(s.svc.Location()))
	rows := s.svc.AvailabilityForWeek(ctx, userID, ref)
	return newStruct(map[string]any{
		"week_start":   week.Start,
		"week_end":     week.End,
		"availability": listOf(rows, availabilityValue),
	})
}

func (s *SchedulingServer) GetSoonestAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "GetSoonestAvailability"))

	providerID, err := int64Field(req, "provider_id")
	if err != nil {
		return nil, s.toStatus(log, err)
	}
	soonest, err := s.svc.SoonestAvailability(ctx, providerID)
	if err != nil {
		return nil, s.toStatus(log, err)
	}
	return newStruct(soonestValue(soonest))
}

// WatchChanges streams change kinds until the client goes away. A resync
// event is sent first and then every resync interval.
func (s *SchedulingServer) WatchChanges(req *structpb.Struct, stream WatchChangesServer) error {
	log := s.log.With(slog.String("rpc", "WatchChanges"))

	names, err := stringListField(req, "kinds")
	if err != nil {
		return s.toStatus(log, err)
	}
	kinds := make([]events.Kind, 0, len(names))
	for _, n := range names {
		k := events.Kind(n)
		if k != events.ReservationChanged && k != events.AvailabilityChanged {
			return status.Errorf(codes.InvalidArgument, "unknown event kind %q", n)
		}
		kinds = append(kinds, k)
	}

	ch, dispose := s.bus.Subscribe(16, kinds...)
	defer dispose()

	var tick <-chan time.Time
	if s.resync > 0 {
		ticker := time.NewTicker(s.resync)
		defer ticker.Stop()
		tick = ticker.C
	}

	ctx := stream.Context()
	log.Debug("watcher subscribed", slog.Int("kinds", len(kinds)))
	defer log.Debug("watcher gone")

	if err := sendKind(stream, events.Resync); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case k, ok := <-ch:
			if !ok {
				return nil
			}
			if err := sendKind(stream, k); err != nil {
				return err
			}
		case <-tick:
			if err := sendKind(stream, events.Resync); err != nil {
				return err
			}
		}
	}
}

func sendKind(stream WatchChangesServer, k events.Kind) error {
	msg, err := structpb.NewStruct(map[string]any{"kind": string(k)})
	if err != nil {
		return err
	}
	return stream.Send(msg)
}

func (s *SchedulingServer) weekRequest(req *structpb.Struct) (int64, time.Time, error) {
	userID, err := int64Field(req, "user_id")
	if err != nil {
		return 0, time.Time{}, err
	}
	ref, err := refField(req, "ref", s.svc.Location(), s.now())
	if err != nil {
		return 0, time.Time{}, err
	}
	return userID, ref, nil
}

func isFieldError(err error) (*fieldError, bool) {
	var fErr *fieldError
	ok := errors.As(err, &fErr)
	return fErr, ok
}
