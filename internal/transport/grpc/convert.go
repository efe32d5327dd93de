package grpc

import (
	"fmt"
	"math"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"schedula/reservations/internal/domain"
)

type fieldError struct {
	msg string
}

func (e *fieldError) Error() string { return e.msg }

// int64Field reads an integral number. A missing field reads as zero.
func int64Field(req *structpb.Struct, name string) (int64, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return 0, nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return 0, nil
	case *structpb.Value_NumberValue:
		f := k.NumberValue
		if f != math.Trunc(f) || math.IsInf(f, 0) || math.Abs(f) > 1<<53 {
			return 0, &fieldError{msg: name + " must be an integer"}
		}
		return int64(f), nil
	default:
		return 0, &fieldError{msg: name + " must be a number"}
	}
}

func stringField(req *structpb.Struct, name string) (string, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return "", nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return "", nil
	case *structpb.Value_StringValue:
		return strings.TrimSpace(k.StringValue), nil
	default:
		return "", &fieldError{msg: name + " must be a string"}
	}
}

func stringListField(req *structpb.Struct, name string) ([]string, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return nil, nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil, &fieldError{msg: name + " must be a list of strings"}
	}
	out := make([]string, 0, len(list.GetValues()))
	for _, item := range list.GetValues() {
		s, ok := item.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, &fieldError{msg: name + " must be a list of strings"}
		}
		out = append(out, s.StringValue)
	}
	return out, nil
}

type stringDst struct {
	name string
	dst  *string
}

func readStrings(req *structpb.Struct, fields []stringDst) error {
	for _, f := range fields {
		v, err := stringField(req, f.name)
		if err != nil {
			return err
		}
		*f.dst = v
	}
	return nil
}

// refField reads a reference instant given as YYYY-MM-DD (midnight in loc)
// or RFC 3339. A missing field means now.
func refField(req *structpb.Struct, name string, loc *time.Location, now time.Time) (time.Time, error) {
	s, err := stringField(req, name)
	if err != nil {
		return time.Time{}, err
	}
	if s == "" {
		return now, nil
	}
	if d, err := time.ParseInLocation(domain.DateLayout, s, loc); err == nil {
		return d, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, &fieldError{msg: name + " must be YYYY-MM-DD or RFC 3339"}
	}
	return t, nil
}

func userValue(u domain.User) map[string]any {
	return map[string]any{
		"id":         u.ID,
		"name":       u.Name,
		"role":       string(u.Role),
		"created_at": u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func reservationValue(r domain.Reservation) map[string]any {
	participants := make([]any, 0, len(r.UserIDs))
	for _, id := range r.UserIDs {
		participants = append(participants, id)
	}
	return map[string]any{
		"id":         r.ID,
		"name":       r.Name,
		"date":       r.Date,
		"start_time": r.StartTime,
		"end_time":   r.EndTime,
		"status":     string(r.Status),
		"user_ids":   participants,
		"created_at": r.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at": r.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func availabilityValue(a domain.Availability) map[string]any {
	return map[string]any{
		"id":         a.ID,
		"user_id":    a.UserID,
		"date":       a.Date,
		"start_time": a.StartTime,
		"end_time":   a.EndTime,
		"revision":   a.Revision,
	}
}

func soonestValue(s domain.Soonest) map[string]any {
	out := map[string]any{"outcome": s.Outcome.String()}
	if s.Outcome == domain.SoonestFound {
		out["slot"] = availabilityValue(s.Slot)
	}
	return out
}

func listOf[T any](items []T, conv func(T) map[string]any) []any {
	out := make([]any, 0, len(items))
	for _, it := range items {
		out = append(out, conv(it))
	}
	return out
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return s, nil
}
