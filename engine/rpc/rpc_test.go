package rpc

import (
	iface "FaceOverlay/interface"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type mockService struct {
	mu        sync.Mutex
	engines   map[string]string
	md        metadata.MD
	imageLen  int
	destroyed []string
}

func (m *mockService) initEngine(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	path := req.GetFields()["modelPath"].GetStringValue()
	if path == "missing.onnx" {
		return structpb.NewStruct(map[string]any{"success": false, "message": "model not found"})
	}
	m.mu.Lock()
	m.engines["mock-id"] = path
	m.mu.Unlock()
	return structpb.NewStruct(map[string]any{"success": true, "id": "mock-id"})
}

func (m *mockService) inference(ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	m.mu.Lock()
	m.md = md
	m.imageLen = len(req.GetValue())
	m.mu.Unlock()
	if len(md.Get(MDEngineID)) == 0 {
		return nil, status.Error(codes.InvalidArgument, "missing engine id")
	}
	return structpb.NewStruct(map[string]any{
		"success": true,
		"faces": []any{
			map[string]any{
				"box":       []any{10.0, 10.0, 50.0, 60.0},
				"score":     0.93,
				"landmarks": []any{20.0, 25.0, 40.0, 25.0, 30.0, 35.0, 22.0, 48.0, 38.0, 48.0},
			},
		},
	})
}

func (m *mockService) destroyEngine(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := req.GetFields()["id"].GetStringValue()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.engines[id]; !ok {
		return structpb.NewStruct(map[string]any{"success": false, "message": "detector not found"})
	}
	delete(m.engines, id)
	m.destroyed = append(m.destroyed, id)
	return structpb.NewStruct(map[string]any{"success": true})
}

func startMockServer(t *testing.T, svc *mockService) grpc.DialOption {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	desc := grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "InitEngine",
				Handler: func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
					in := new(structpb.Struct)
					if err := dec(in); err != nil {
						return nil, err
					}
					return srv.(*mockService).initEngine(ctx, in)
				},
			},
			{
				MethodName: "Inference",
				Handler: func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
					in := new(wrapperspb.BytesValue)
					if err := dec(in); err != nil {
						return nil, err
					}
					return srv.(*mockService).inference(ctx, in)
				},
			},
			{
				MethodName: "DestroyEngine",
				Handler: func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
					in := new(structpb.Struct)
					if err := dec(in); err != nil {
						return nil, err
					}
					return srv.(*mockService).destroyEngine(ctx, in)
				},
			},
		},
	}
	s.RegisterService(&desc, svc)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)
	return grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
}

func TestClient_All(t *testing.T) {
	svc := &mockService{engines: map[string]string{}}
	dialer := startMockServer(t, svc)
	c := New("passthrough:///bufnet", 2*time.Second, 0.5, 0.4, dialer)

	t.Run("Test Init", func(t *testing.T) {
		require.NoError(t, c.Init("models/RetinaFace.onnx"))
		assert.Equal(t, "models/RetinaFace.onnx", svc.engines["mock-id"])
		assert.Equal(t, "grpc", c.CheckConfig().Backend)
	})

	t.Run("Test Inference", func(t *testing.T) {
		img := iface.ImageBuffer{
			Width: 2, Height: 2, WidthStride: 8, HeightStride: 2,
			Format: iface.FormatRGB888, Data: make([]byte, 16), Size: 16,
		}
		faces, err := c.Infer(img)
		require.NoError(t, err)
		require.Len(t, faces, 1)
		assert.Equal(t, iface.Box{Left: 10, Top: 10, Right: 50, Bottom: 60}, faces[0].Box)
		assert.InDelta(t, 0.93, faces[0].Score, 1e-6)
		assert.Equal(t, iface.Point{X: 38, Y: 48}, faces[0].Landmarks[iface.RightMouth])

		assert.Equal(t, 12, svc.imageLen)
		assert.Equal(t, []string{"mock-id"}, svc.md.Get(MDEngineID))
		assert.Equal(t, []string{"2"}, svc.md.Get(MDWidth))
		assert.Equal(t, []string{"RGB888"}, svc.md.Get(MDFormat))
	})

	t.Run("Test Release", func(t *testing.T) {
		require.NoError(t, c.Release())
		assert.Equal(t, []string{"mock-id"}, svc.destroyed)
		assert.NoError(t, c.Release())
		_, err := c.Infer(iface.ImageBuffer{})
		assert.Error(t, err)
	})
}

func TestClient_InitRejected(t *testing.T) {
	svc := &mockService{engines: map[string]string{}}
	c := New("passthrough:///bufnet", time.Second, 0.5, 0.4, startMockServer(t, svc))
	assert.ErrorContains(t, c.Init("missing.onnx"), "model not found")
	assert.NoError(t, c.Release())
}

func TestDecodeFace(t *testing.T) {
	s, err := structpb.NewStruct(map[string]any{"box": []any{1.0, 2.0}, "score": 0.5})
	require.NoError(t, err)
	_, err = decodeFace(s)
	assert.Error(t, err)
}
