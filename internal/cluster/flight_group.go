package cluster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/23skdu/gridscreen/internal/core"
	gserrors "github.com/23skdu/gridscreen/internal/errors"
	"github.com/23skdu/gridscreen/internal/molecule"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	gojson "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// DefaultMaxMessageBytes bounds one Flight message; score buffers and molecule
// arrays of large screens exceed gRPC's 4MB default.
const DefaultMaxMessageBytes = 1024 * 1024 * 256

// DefaultBatchRows is the number of scores, or molecule atoms, per streamed
// record batch. Large buffers go out as several batches, each well below the
// message limit.
const DefaultBatchRows = 1 << 20

// FlightConfig describes one rank of a Flight process group.
type FlightConfig struct {
	// Addr is the root's listen address. Rank 0 binds it; other ranks dial it.
	Addr string
	Rank int
	Size int

	MaxMessageBytes int
	// BatchRows caps the scores or atoms per record batch; 0 uses DefaultBatchRows.
	BatchRows int
	// ShutdownTimeout bounds the root's graceful stop on Close.
	ShutdownTimeout time.Duration
	Allocator       memory.Allocator
	Logger          zerolog.Logger
}

// FlightGroup is a rank of a multi-process group. The root runs an Arrow
// Flight service over its coordinator; every other rank is a Flight client.
type FlightGroup struct {
	rank, size int
	mem        memory.Allocator
	batchRows  int
	logger     zerolog.Logger
	timeout    time.Duration

	// root
	root   *member
	server *grpc.Server
	lis    net.Listener
	served chan error

	// remote ranks
	client flight.Client
	seq    sequencer
}

// NewFlightGroup joins the group described by cfg. The root starts serving
// immediately; other ranks connect lazily and wait for the root on first use.
func NewFlightGroup(cfg FlightConfig) (*FlightGroup, error) {
	if err := checkMembership(cfg.Rank, cfg.Size); err != nil {
		return nil, err
	}
	if cfg.Addr == "" {
		return nil, gserrors.NewConfigurationError("cluster", "coordinator address is required")
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Allocator == nil {
		cfg.Allocator = memory.NewGoAllocator()
	}
	if cfg.BatchRows <= 0 {
		cfg.BatchRows = DefaultBatchRows
	}

	g := &FlightGroup{
		rank:      cfg.Rank,
		size:      cfg.Size,
		mem:       cfg.Allocator,
		batchRows: cfg.BatchRows,
		logger:    cfg.Logger.With().Int("rank", cfg.Rank).Int("size", cfg.Size).Logger(),
		timeout:   cfg.ShutdownTimeout,
		seq:       sequencer{},
	}
	if cfg.Rank == Root {
		if err := g.serve(cfg); err != nil {
			return nil, err
		}
		return g, nil
	}

	client, err := flight.NewClientWithMiddleware(cfg.Addr, nil, nil,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.WaitForReady(true),
			grpc.MaxCallRecvMsgSize(cfg.MaxMessageBytes),
			grpc.MaxCallSendMsgSize(cfg.MaxMessageBytes),
		),
	)
	if err != nil {
		return nil, gserrors.WrapNetworkError(err, "cluster", fmt.Sprintf("failed to dial %s", cfg.Addr))
	}
	g.client = client
	return g, nil
}

func (g *FlightGroup) serve(cfg FlightConfig) error {
	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return gserrors.WrapNetworkError(err, "cluster", fmt.Sprintf("failed to listen on %s", cfg.Addr))
	}
	coord := newCoordinator(cfg.Size, 1)
	g.root = newMember(Root, coord, core.TransportFlight)
	g.lis = lis
	g.server = grpc.NewServer(
		grpc.MaxRecvMsgSize(cfg.MaxMessageBytes),
		grpc.MaxSendMsgSize(cfg.MaxMessageBytes),
	)
	flight.RegisterFlightServiceServer(g.server, &flightService{
		coord:     coord,
		mem:       cfg.Allocator,
		batchRows: cfg.BatchRows,
		logger:    g.logger,
	})
	g.served = make(chan error, 1)
	go func() {
		g.served <- g.server.Serve(lis)
	}()
	g.logger.Info().Str("addr", lis.Addr().String()).Msg("Process group coordinator listening")
	return nil
}

// Addr is the address the root is listening on, or "" on other ranks.
func (g *FlightGroup) Addr() string {
	if g.lis == nil {
		return ""
	}
	return g.lis.Addr().String()
}

func (g *FlightGroup) Rank() int                 { return g.rank }
func (g *FlightGroup) Size() int                 { return g.size }
func (g *FlightGroup) Transport() core.Transport { return core.TransportFlight }

func (g *FlightGroup) ShareStore(ctx context.Context, s *molecule.Store) (*molecule.Store, error) {
	if g.root != nil {
		return g.root.shareStore(ctx, s)
	}
	defer observe(opStore, time.Now())
	key := g.seq.next(opStore)
	proteins, err := g.fetchFlat(ctx, key+"/proteins")
	if err != nil {
		return nil, err
	}
	ligands, err := g.fetchFlat(ctx, key+"/ligands")
	if err != nil {
		return nil, err
	}
	g.logger.Debug().Int("proteins", proteins.Len()).Int("ligands", ligands.Len()).Msg("Received molecules")
	return molecule.NewStoreFromFlat(proteins, ligands), nil
}

func (g *FlightGroup) fetchFlat(ctx context.Context, ticket string) (*molecule.Flat, error) {
	stream, err := g.client.DoGet(ctx, &flight.Ticket{Ticket: []byte(ticket)})
	if err != nil {
		return nil, g.wrap(err, "DoGet "+ticket)
	}
	r, err := flight.NewRecordReader(stream, ipc.WithAllocator(g.mem))
	if err != nil {
		return nil, g.wrap(err, "DoGet "+ticket)
	}
	defer r.Release()

	flat := &molecule.Flat{}
	for r.Next() {
		part, err := molecule.FlatFromRecord(r.Record())
		if err != nil {
			return nil, gserrors.WrapNetworkError(err, "cluster", "decode "+ticket)
		}
		flat.Append(part)
	}
	if err := r.Err(); err != nil {
		return nil, g.wrap(err, "DoGet "+ticket)
	}
	if err := flat.Validate(); err != nil {
		return nil, gserrors.WrapNetworkError(err, "cluster", "decode "+ticket)
	}
	return flat, nil
}

func (g *FlightGroup) GatherCounts(ctx context.Context, n int) ([]int, error) {
	if g.root != nil {
		return g.root.gatherCounts(ctx, n)
	}
	defer observe(opCounts, time.Now())
	key := g.seq.next(opCounts)
	return nil, g.action(ctx, actionGatherCounts, actionRequest{Key: key, Rank: g.rank, Count: n})
}

func (g *FlightGroup) Gatherv(ctx context.Context, local []float64, counts []int) ([]float64, error) {
	if g.root != nil {
		return g.root.gatherv(ctx, local, counts)
	}
	defer observe(opGatherv, time.Now())
	key := g.seq.next(opGatherv)
	return nil, g.put(ctx, key, local)
}

func (g *FlightGroup) Barrier(ctx context.Context) error {
	if g.root != nil {
		return g.root.barrier(ctx)
	}
	defer observe(opBarrier, time.Now())
	key := g.seq.next(opBarrier)
	return g.action(ctx, actionBarrier, actionRequest{Key: key, Rank: g.rank})
}

func (g *FlightGroup) action(ctx context.Context, typ string, req actionRequest) error {
	body, err := gojson.Marshal(req)
	if err != nil {
		return err
	}
	stream, err := g.client.DoAction(ctx, &flight.Action{Type: typ, Body: body})
	if err != nil {
		return g.wrap(err, typ)
	}
	for {
		if _, err := stream.Recv(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return g.wrap(err, typ)
		}
	}
}

func (g *FlightGroup) put(ctx context.Context, key string, local []float64) error {
	stream, err := g.client.DoPut(ctx)
	if err != nil {
		return g.wrap(err, "DoPut "+key)
	}

	w := flight.NewRecordWriter(stream, ipc.WithSchema(scoreSchema), ipc.WithAllocator(g.mem))
	w.SetFlightDescriptor(&flight.FlightDescriptor{
		Type: flight.DescriptorPATH,
		Path: []string{key, strconv.Itoa(g.rank)},
	})
	// an empty buffer still sends one empty batch
	for off := 0; ; off += g.batchRows {
		end := min(off+g.batchRows, len(local))
		if err := g.writeScores(w, local[off:end]); err != nil {
			w.Close()
			return g.wrap(err, "DoPut "+key)
		}
		if end == len(local) {
			break
		}
	}
	if err := w.Close(); err != nil {
		return g.wrap(err, "DoPut "+key)
	}
	if err := stream.CloseSend(); err != nil {
		return g.wrap(err, "DoPut "+key)
	}
	for {
		if _, err := stream.Recv(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return g.wrap(err, "DoPut "+key)
		}
	}
}

func (g *FlightGroup) writeScores(w *flight.Writer, scores []float64) error {
	b := array.NewFloat64Builder(g.mem)
	defer b.Release()
	b.AppendValues(scores, nil)
	col := b.NewArray()
	defer col.Release()
	rec := array.NewRecord(scoreSchema, []arrow.Array{col}, int64(len(scores)))
	defer rec.Release()
	return w.Write(rec)
}

func (g *FlightGroup) wrap(err error, op string) error {
	return gserrors.WrapNetworkError(fromStatus(err), "cluster", op).WithContext("rank", g.rank)
}

// Close stops the root's service, waiting for in-flight calls up to the
// shutdown timeout, or closes a rank's connection.
func (g *FlightGroup) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	if g.server == nil {
		return nil
	}
	g.root.coord.release()

	stopped := make(chan struct{})
	go func() {
		g.server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(g.timeout):
		g.logger.Warn().Dur("timeout", g.timeout).Msg("Forcing coordinator shutdown")
		g.server.Stop()
	}
	g.server = nil
	if err := <-g.served; err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
