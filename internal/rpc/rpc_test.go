package rpc

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/progression-engine/internal/api"
	"github.com/danielpatrickdp/progression-engine/internal/ledger"
	"github.com/danielpatrickdp/progression-engine/internal/logging"
	"github.com/danielpatrickdp/progression-engine/internal/orchestrator"
	"github.com/danielpatrickdp/progression-engine/internal/state"
)

// #region harness

func startServer(t *testing.T) (*Client, *grpc.ClientConn) {
	t.Helper()
	store, err := state.NewStore(filepath.Join(t.TempDir(), "rpc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	eng := orchestrator.New(store, ledger.New(store.DB()), orchestrator.DefaultConfig(),
		orchestrator.WithClock(func() time.Time { return now }),
		orchestrator.WithLogger(logging.Discard()))

	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(NewServer(eng, logging.Discard()), logging.Discard())
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewClientWithConn(conn), conn
}

// #endregion harness

func TestAward_RoundTrip(t *testing.T) {
	c, _ := startServer(t)
	ctx := context.Background()

	res, err := c.Award(ctx, api.AwardRequest{UserID: "u1", Dims: map[string]float64{"SIP": 5}, Kinds: []string{"first_insight"}, Source: "rpc"})
	require.NoError(t, err)
	assert.InDelta(t, 7.5, res.DeltaXP, 1e-9)
	assert.InDelta(t, 1207.5, res.NewXPTotal, 1e-9)
	assert.True(t, res.PassesGates)
	require.Len(t, res.TopContributors, 1)
	assert.Equal(t, "SIP", res.TopContributors[0].Dimension)
	assert.NotEmpty(t, res.EntryID)

	st, err := c.State(ctx, "u1")
	require.NoError(t, err)
	assert.InDelta(t, 1207.5, st.XPTotal, 1e-9)
	assert.InDelta(t, 37.25, st.DimScores["SIP"], 1e-9)
	assert.Equal(t, int64(1), st.Version)

	led, err := c.Ledger(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, led.Entries, 1)
	assert.Equal(t, res.EntryID, led.Entries[0].ID)
	assert.Equal(t, "rpc", led.Entries[0].Source)

	rec, err := c.Reconcile(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
	assert.Equal(t, 1, rec.Entries)
}

func TestAward_InvalidArgument(t *testing.T) {
	c, _ := startServer(t)
	_, err := c.Award(context.Background(), api.AwardRequest{UserID: "u1", Dims: map[string]float64{"XYZ": 1}, Kinds: []string{"k"}})
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.Award(context.Background(), api.AwardRequest{UserID: "u1", Dims: map[string]float64{"SIP": 1}})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestAward_NonNumericDimension(t *testing.T) {
	_, conn := startServer(t)
	in, err := structpb.NewStruct(map[string]any{
		"user_id": "u1",
		"dims":    map[string]any{"SIP": "five"},
		"kinds":   []any{"k"},
	})
	require.NoError(t, err)
	err = conn.Invoke(context.Background(), methodAwardXP, in, new(structpb.Struct))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGetState_NotFound(t *testing.T) {
	c, _ := startServer(t)
	_, err := c.State(context.Background(), "ghost")
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = c.State(context.Background(), " ")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestToStatus(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{orchestrator.ErrInvalidInput, codes.InvalidArgument},
		{state.ErrNotFound, codes.NotFound},
		{orchestrator.ErrTransient, codes.Unavailable},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{assert.AnError, codes.Internal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, status.Code(toStatus(tc.err)), "%v", tc.err)
	}
}

func TestNewClient_LazyDial(t *testing.T) {
	c, err := NewClient("localhost:0")
	require.NoError(t, err)
	require.NoError(t, c.Close())

	assert.NoError(t, NewClientWithConn(nil).Close())
}
