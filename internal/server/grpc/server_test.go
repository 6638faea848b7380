package grpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ekisa-team/emovec/internal/pipeline"
	"github.com/ekisa-team/emovec/internal/service"
)

type fakeInferrer struct {
	lastLen int
}

func (f *fakeInferrer) Infer(_ context.Context, samples []float32) (pipeline.Scores, bool) {
	f.lastLen = len(samples)
	if len(samples) == 0 {
		return nil, false
	}
	return pipeline.Scores{2, -1}, true
}

func startServer(t *testing.T, health func() error) (*grpc.ClientConn, *Server, *fakeInferrer) {
	t.Helper()
	inf := &fakeInferrer{}
	svc := service.NewEmotion(inf, []string{"angry", "calm"})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(NewEmotionServer(svc, 16000, health, nil), logger)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, srv, inf
}

func detect(t *testing.T, conn *grpc.ClientConn, fields map[string]any) (*structpb.Struct, error) {
	t.Helper()
	req, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	resp := new(structpb.Struct)
	err = conn.Invoke(context.Background(), DetectMethod, req, resp)
	return resp, err
}

func TestDetect(t *testing.T) {
	conn, _, inf := startServer(t, nil)

	samples := make([]any, 3200)
	for i := range samples {
		samples[i] = 0.0
	}
	resp, err := detect(t, conn, map[string]any{"samples": samples})
	require.NoError(t, err)

	out := resp.AsMap()
	assert.Equal(t, "angry", out["dominant"])
	assert.Equal(t, []any{2.0, -1.0}, out["scores"])
	assert.Equal(t, 3200.0, out["samples"])
	assert.Equal(t, 3200, inf.lastLen)
}

func TestDetect_InvalidArgument(t *testing.T) {
	conn, _, _ := startServer(t, nil)

	_, err := detect(t, conn, map[string]any{"samples": "loud"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = detect(t, conn, map[string]any{"samples": []any{0.1}, "sample_rate": -5})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestDetect_FailureCodes(t *testing.T) {
	conn, _, _ := startServer(t, nil)
	_, err := detect(t, conn, map[string]any{"samples": []any{}})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	broken, _, _ := startServer(t, func() error { return errors.New("classifier missing") })
	_, err = detect(t, broken, map[string]any{"samples": []any{}})
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestHealth(t *testing.T) {
	conn, srv, _ := startServer(t, nil)
	client := healthgrpc.NewHealthClient(conn)

	resp, err := client.Check(context.Background(), &healthgrpc.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthgrpc.HealthCheckResponse_NOT_SERVING, resp.GetStatus())

	srv.SetServing(true)
	resp, err = client.Check(context.Background(), &healthgrpc.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthgrpc.HealthCheckResponse_SERVING, resp.GetStatus())
}
