package adminrpc

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/grpcreflect"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mcdev12/quizhub/go/internal/quiz/manager"
	"github.com/mcdev12/quizhub/go/internal/quiz/session"
)

// RoomAdmin defines what the admin service needs from the session layer
type RoomAdmin interface {
	Summaries() []session.RoomSummary
	CloseRoom(roomID string) error
}

// Service implements RoomAdminService
type Service struct {
	rooms RoomAdmin
}

// NewService creates a new admin RPC service
func NewService(rooms RoomAdmin) *Service {
	return &Service{rooms: rooms}
}

// ListRooms returns every active room as {"rooms": [...]}
func (s *Service) ListRooms(_ context.Context, _ *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error) {
	summaries := s.rooms.Summaries()

	rooms := make([]any, 0, len(summaries))
	for _, r := range summaries {
		rooms = append(rooms, map[string]any{
			"room_id":    r.RoomID,
			"game_id":    r.GameID,
			"game_title": r.GameTitle,
			"state":      r.State,
			"players":    r.Players,
			"locked":     r.Locked,
			"created_at": r.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	out, err := structpb.NewStruct(map[string]any{"rooms": rooms})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

// CloseRoom ends the room named by the room_id field
func (s *Service) CloseRoom(_ context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[emptypb.Empty], error) {
	roomID := strings.TrimSpace(req.Msg.GetFields()["room_id"].GetStringValue())
	if roomID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("room_id is required"))
	}

	if err := s.rooms.CloseRoom(roomID); err != nil {
		if errors.Is(err, manager.ErrRoomNotFound) {
			return nil, connect.NewError(connect.CodeNotFound, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	log.Info().Str("room_id", roomID).Msg("room closed through admin rpc")
	return connect.NewResponse(&emptypb.Empty{}), nil
}

// NewHandler builds the HTTP handler serving svc. The returned path is the
// mux prefix of the service.
func NewHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler, error) {
	sd, err := Schema()
	if err != nil {
		return "", nil, err
	}
	methods := sd.Methods()

	listRooms := connect.NewUnaryHandler(
		ListRoomsProcedure,
		svc.ListRooms,
		connect.WithSchema(methods.ByName("ListRooms")),
		connect.WithHandlerOptions(opts...),
	)
	closeRoom := connect.NewUnaryHandler(
		CloseRoomProcedure,
		svc.CloseRoom,
		connect.WithSchema(methods.ByName("CloseRoom")),
		connect.WithHandlerOptions(opts...),
	)

	return "/" + ServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case ListRoomsProcedure:
			listRooms.ServeHTTP(w, r)
		case CloseRoomProcedure:
			closeRoom.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	}), nil
}

// RegisterReflection mounts gRPC reflection for the admin service so that
// grpcurl and grpcui can discover it.
func RegisterReflection(mux *http.ServeMux) error {
	if _, err := Schema(); err != nil {
		return err
	}
	reflector := grpcreflect.NewStaticReflector(ServiceName)
	mux.Handle(grpcreflect.NewHandlerV1(reflector))
	mux.Handle(grpcreflect.NewHandlerV1Alpha(reflector))
	return nil
}

// Client calls RoomAdminService on a running server.
type Client struct {
	listRooms *connect.Client[emptypb.Empty, structpb.Struct]
	closeRoom *connect.Client[structpb.Struct, emptypb.Empty]
}

func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	return &Client{
		listRooms: connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+ListRoomsProcedure, opts...),
		closeRoom: connect.NewClient[structpb.Struct, emptypb.Empty](httpClient, baseURL+CloseRoomProcedure, opts...),
	}
}

// ListRooms returns the raw room records reported by the server.
func (c *Client) ListRooms(ctx context.Context) ([]map[string]any, error) {
	res, err := c.listRooms.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return nil, err
	}

	var rooms []map[string]any
	for _, v := range res.Msg.GetFields()["rooms"].GetListValue().GetValues() {
		rooms = append(rooms, v.GetStructValue().AsMap())
	}
	return rooms, nil
}

func (c *Client) CloseRoom(ctx context.Context, roomID string) error {
	req, err := structpb.NewStruct(map[string]any{"room_id": roomID})
	if err != nil {
		return err
	}
	_, err = c.closeRoom.CallUnary(ctx, connect.NewRequest(req))
	return err
}
