package cluster

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/23skdu/gridscreen/internal/core"
	"github.com/23skdu/gridscreen/internal/metrics"
	"github.com/23skdu/gridscreen/internal/molecule"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	gojson "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	actionGatherCounts = "gather-counts"
	actionBarrier      = "barrier"
)

// scoreSchema carries one rank's score buffer in DoPut.
var scoreSchema = arrow.NewSchema(
	[]arrow.Field{{Name: "score", Type: arrow.PrimitiveTypes.Float64}},
	nil,
)

type actionRequest struct {
	Key   string `json:"key"`
	Rank  int    `json:"rank"`
	Count int    `json:"count,omitempty"`
}

// flightService exposes the root's coordinator to remote ranks.
//
//	DoAction gather-counts  record a rank's buffer length
//	DoAction barrier        block until every rank arrived
//	DoPut    [key, rank]    record a rank's score buffer
//	DoGet    key/proteins   stream the shared protein arrays
//	DoGet    key/ligands    stream the shared ligand arrays
type flightService struct {
	flight.BaseFlightServer
	coord     *coordinator
	mem       memory.Allocator
	batchRows int
	logger    zerolog.Logger
}

func (s *flightService) ListActions(_ *flight.Empty, stream flight.FlightService_ListActionsServer) error {
	for _, a := range []*flight.ActionType{
		{Type: actionGatherCounts, Description: "Record a rank's score buffer length"},
		{Type: actionBarrier, Description: "Wait until every rank entered the barrier"},
	} {
		if err := stream.Send(a); err != nil {
			return err
		}
	}
	return nil
}

func (s *flightService) DoAction(action *flight.Action, stream flight.FlightService_DoActionServer) error {
	start := time.Now()
	err := s.doAction(action, stream)
	record("DoAction", start, err)
	return toStatus(err)
}

func (s *flightService) doAction(action *flight.Action, stream flight.FlightService_DoActionServer) error {
	if action == nil {
		return status.Error(codes.InvalidArgument, "action is required")
	}
	var req actionRequest
	if err := gojson.Unmarshal(action.Body, &req); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid json body: %v", err)
	}
	s.logger.Debug().Str("type", action.Type).Str("key", req.Key).Int("rank", req.Rank).Msg("DoAction")

	switch action.Type {
	case actionGatherCounts:
		if req.Count < 0 {
			return core.NewInvalidArgumentError("count", "must be >= 0")
		}
		if _, err := s.coord.contribute(req.Key, s.coord.size, req.Rank, req.Count); err != nil {
			return err
		}
	case actionBarrier:
		r, err := s.coord.contribute(req.Key, s.coord.size, req.Rank, nil)
		if err != nil {
			return err
		}
		if err := s.coord.await(stream.Context(), r); err != nil {
			return err
		}
	default:
		return status.Errorf(codes.Unimplemented, "unknown action: %s", action.Type)
	}
	return stream.Send(&flight.Result{Body: []byte("ok")})
}

func (s *flightService) DoPut(stream flight.FlightService_DoPutServer) error {
	start := time.Now()
	err := s.doPut(stream)
	record("DoPut", start, err)
	return toStatus(err)
}

func (s *flightService) doPut(stream flight.FlightService_DoPutServer) error {
	r, err := flight.NewRecordReader(stream, ipc.WithAllocator(s.mem))
	if err != nil {
		return err
	}
	defer r.Release()

	fd := r.LatestFlightDescriptor()
	if fd == nil || len(fd.Path) != 2 {
		return status.Error(codes.InvalidArgument, "descriptor path must be [key, rank]")
	}
	key := fd.Path[0]
	rank, err := strconv.Atoi(fd.Path[1])
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "bad rank %q", fd.Path[1])
	}
	if !r.Schema().Equal(scoreSchema) {
		return status.Errorf(codes.InvalidArgument, "unexpected schema %s", r.Schema())
	}

	var buf []float64
	for r.Next() {
		col := r.Record().Column(0).(*array.Float64)
		buf = append(buf, col.Float64Values()...)
	}
	if err := r.Err(); err != nil {
		return err
	}
	if _, err := s.coord.contribute(key, s.coord.size, rank, buf); err != nil {
		return err
	}
	metrics.GatherBytesTotal.WithLabelValues(string(core.TransportFlight)).Add(float64(8 * len(buf)))
	return stream.Send(&flight.PutResult{})
}

func (s *flightService) DoGet(tkt *flight.Ticket, stream flight.FlightService_DoGetServer) error {
	start := time.Now()
	err := s.doGet(tkt, stream)
	record("DoGet", start, err)
	return toStatus(err)
}

func (s *flightService) doGet(tkt *flight.Ticket, stream flight.FlightService_DoGetServer) error {
	key, set, ok := cutLast(string(tkt.GetTicket()))
	if !ok || (set != "proteins" && set != "ligands") {
		return status.Errorf(codes.InvalidArgument, "bad ticket %q", tkt.GetTicket())
	}
	r, err := s.coord.get(key, 1)
	if err != nil {
		return err
	}
	if err := s.coord.await(stream.Context(), r); err != nil {
		return err
	}
	proteins, ligands := r.parts[Root].(*molecule.Store).Flat()
	flat := proteins
	if set == "ligands" {
		flat = ligands
	}

	w := flight.NewRecordWriter(stream, ipc.WithSchema(molecule.FlatSchema), ipc.WithAllocator(s.mem))
	for _, chunk := range flat.Chunks(s.batchRows) {
		if err := writeFlat(w, chunk, s.mem); err != nil {
			w.Close()
			return fmt.Errorf("stream %s: %w", set, err)
		}
	}
	return w.Close()
}

func writeFlat(w *flight.Writer, f *molecule.Flat, mem memory.Allocator) error {
	rec := f.Record(mem)
	defer rec.Release()
	return w.Write(rec)
}

func cutLast(ticket string) (key, set string, ok bool) {
	i := strings.LastIndexByte(ticket, '/')
	if i <= 0 {
		return "", "", false
	}
	return ticket[:i], ticket[i+1:], true
}

func record(method string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.FlightOperationsTotal.WithLabelValues(method, result).Inc()
	metrics.FlightDurationSeconds.WithLabelValues(method).Observe(time.Since(start).Seconds())
}
