// Package query serves the read-only arena.v1.BattleQuery gRPC service.
//
// Messages are google.protobuf.Struct values so the service needs no
// generated code: requests carry battle_id (and page_size, page_token for
// ListTurns); responses mirror the HTTP JSON views.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	apperrors "github.com/louisbranch/monarena/internal/platform/errors"
	"github.com/louisbranch/monarena/internal/services/arena/app"
	"github.com/louisbranch/monarena/internal/services/arena/storage"
)

const (
	// ServiceName is the fully-qualified gRPC service name.
	ServiceName = "arena.v1.BattleQuery"

	GetBattleMethod = "/" + ServiceName + "/GetBattle"
	ListTurnsMethod = "/" + ServiceName + "/ListTurns"
)

// BattleQueryServer is the server API for the BattleQuery service.
type BattleQueryServer interface {
	GetBattle(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListTurns(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes BattleQuery for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BattleQueryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetBattle", Handler: getBattleHandler},
		{MethodName: "ListTurns", Handler: listTurnsHandler},
	},
	Metadata: "arena/v1/query.proto",
}

// Register adds srv to s.
func Register(s grpc.ServiceRegistrar, srv BattleQueryServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func getBattleHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BattleQueryServer).GetBattle(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetBattleMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BattleQueryServer).GetBattle(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func listTurnsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BattleQueryServer).ListTurns(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListTurnsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BattleQueryServer).ListTurns(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Service implements BattleQueryServer on top of the arena service.
type Service struct {
	svc *app.Service
}

// NewService creates a query service.
func NewService(svc *app.Service) *Service {
	return &Service{svc: svc}
}

// GetBattle returns the battle view. Battles no longer held in memory fall
// back to their stored record and result.
func (s *Service) GetBattle(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	battleID, err := requireBattleID(in)
	if err != nil {
		return nil, apperrors.GRPCStatus(err)
	}
	view, err := s.svc.Battle(battleID)
	if err == nil {
		return toStruct(view)
	}
	if apperrors.CodeOf(err) != apperrors.CodeNotFound {
		return nil, apperrors.GRPCStatus(err)
	}

	rec, rerr := s.svc.Record(ctx, battleID)
	if rerr != nil {
		return nil, apperrors.GRPCStatus(notFound(battleID, rerr, err))
	}
	out := map[string]any{
		"id":           rec.ID,
		"players":      rec.Players,
		"roster_index": rec.RosterIndex,
		"mode":         rec.Mode,
		"started_at":   rec.StartedAt,
		"winner":       "none",
	}
	if res, err := s.svc.Result(ctx, battleID); err == nil {
		out["winner"] = res.Winner
		out["turn"] = res.Turns
		out["reason"] = res.Reason
		out["ended_at"] = res.EndedAt
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.GRPCStatus(err)
	}
	return toStruct(out)
}

// ListTurns returns one page of the stored turn log.
func (s *Service) ListTurns(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	battleID, err := requireBattleID(in)
	if err != nil {
		return nil, apperrors.GRPCStatus(err)
	}
	fields := in.GetFields()
	pageSize := int(fields["page_size"].GetNumberValue())
	if pageSize < 0 {
		return nil, apperrors.GRPCStatus(apperrors.New(apperrors.CodeIllegalAction, "page_size must not be negative"))
	}
	page, err := s.svc.Turns(ctx, battleID, pageSize, fields["page_token"].GetStringValue())
	if err != nil {
		return nil, apperrors.GRPCStatus(err)
	}
	turns := make([]map[string]any, 0, len(page.Turns))
	for _, t := range page.Turns {
		turns = append(turns, map[string]any{
			"seq":        t.Seq,
			"action":     t.Action,
			"player":     t.Player,
			"turn":       t.Turn,
			"flag":       t.Flag,
			"winner":     t.Winner,
			"events":     json.RawMessage(t.Events),
			"created_at": t.CreatedAt,
		})
	}
	return toStruct(map[string]any{"turns": turns, "next_page_token": page.NextPageToken})
}

func requireBattleID(in *structpb.Struct) (string, error) {
	battleID := strings.TrimSpace(in.GetFields()["battle_id"].GetStringValue())
	if battleID == "" {
		return "", apperrors.WithMetadata(apperrors.CodeIllegalAction, "battle_id is required",
			map[string]string{"Field": "battle_id"})
	}
	return battleID, nil
}

func notFound(battleID string, storeErr, engineErr error) error {
	if errors.Is(storeErr, storage.ErrNotFound) {
		return engineErr
	}
	return apperrors.Wrap(apperrors.CodeUnknown, "load battle "+battleID, storeErr)
}

// toStruct round-trips v through JSON so structpb sees only plain values.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, apperrors.GRPCStatus(err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, apperrors.GRPCStatus(err)
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, apperrors.GRPCStatus(err)
	}
	return st, nil
}
