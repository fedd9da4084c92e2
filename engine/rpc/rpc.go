// Package rpc talks to a detection engine exposed as a gRPC service. Messages
// are protobuf well-known types, so no generated stubs are needed.
package rpc

import (
	"FaceOverlay/imagebuf"
	iface "FaceOverlay/interface"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName   = "facedet.DetectService"
	MethodInit    = "/" + ServiceName + "/InitEngine"
	MethodInfer   = "/" + ServiceName + "/Inference"
	MethodDestroy = "/" + ServiceName + "/DestroyEngine"
)

// Metadata keys carried with an Inference call.
const (
	MDEngineID = "engine-id"
	MDWidth    = "width"
	MDHeight   = "height"
	MDFormat   = "format"
)

type Client struct {
	Address        string
	Timeout        time.Duration
	ScoreThreshold float32
	NMSThreshold   float32
	DialOptions    []grpc.DialOption

	conn      *grpc.ClientConn
	id        string
	modelPath string
}

func New(address string, timeout time.Duration, conf, nms float32, opts ...grpc.DialOption) *Client {
	return &Client{Address: address, Timeout: timeout, ScoreThreshold: conf, NMSThreshold: nms, DialOptions: opts}
}

// RemoteArtifact reports that the model path names a file on the engine host.
func (c *Client) RemoteArtifact() bool { return true }

func (c *Client) Init(modelPath string) error {
	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, c.DialOptions...)
	conn, err := grpc.NewClient(c.Address, opts...)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.Address, err)
	}
	req, err := structpb.NewStruct(map[string]any{
		"modelPath":  modelPath,
		"confidence": float64(c.ScoreThreshold),
		"iou":        float64(c.NMSThreshold),
	})
	if err != nil {
		_ = conn.Close()
		return err
	}
	resp := &structpb.Struct{}
	ctx, cancel := c.callContext()
	defer cancel()
	if err := conn.Invoke(ctx, MethodInit, req, resp); err != nil {
		_ = conn.Close()
		return fmt.Errorf("InitEngine: %w", err)
	}
	fields := resp.GetFields()
	if !fields["success"].GetBoolValue() {
		_ = conn.Close()
		return fmt.Errorf("InitEngine rejected: %s", fields["message"].GetStringValue())
	}
	c.id = fields["id"].GetStringValue()
	if c.id == "" {
		_ = conn.Close()
		return errors.New("InitEngine returned no engine id")
	}
	c.conn = conn
	c.modelPath = modelPath
	return nil
}

func (c *Client) CheckConfig() iface.EngineConfig {
	return iface.EngineConfig{
		Backend:        "grpc",
		ModelPath:      c.modelPath,
		Address:        c.Address,
		ScoreThreshold: c.ScoreThreshold,
		NMSThreshold:   c.NMSThreshold,
	}
}

func (c *Client) callContext() (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), c.Timeout)
}

func (c *Client) Infer(img iface.ImageBuffer) ([]iface.DetectedFace, error) {
	if c.conn == nil {
		return nil, errors.New("engine not initialized")
	}
	ctx, cancel := c.callContext()
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx,
		MDEngineID, c.id,
		MDWidth, strconv.Itoa(img.Width),
		MDHeight, strconv.Itoa(img.Height),
		MDFormat, img.Format.String(),
	)
	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, MethodInfer, wrapperspb.Bytes(imagebuf.Pack(img)), resp); err != nil {
		return nil, fmt.Errorf("Inference: %w", err)
	}
	fields := resp.GetFields()
	if !fields["success"].GetBoolValue() {
		return nil, fmt.Errorf("Inference failed: %s", fields["message"].GetStringValue())
	}
	values := fields["faces"].GetListValue().GetValues()
	faces := make([]iface.DetectedFace, 0, len(values))
	for _, v := range values {
		f, err := decodeFace(v.GetStructValue())
		if err != nil {
			return nil, err
		}
		faces = append(faces, f)
	}
	return faces, nil
}

// decodeFace reads {"box": [l, t, r, b], "score": s, "landmarks": [x0, y0, ... x4, y4]}.
func decodeFace(s *structpb.Struct) (iface.DetectedFace, error) {
	var f iface.DetectedFace
	fields := s.GetFields()
	box := fields["box"].GetListValue().GetValues()
	if len(box) != 4 {
		return f, fmt.Errorf("face box has %d values, want 4", len(box))
	}
	lm := fields["landmarks"].GetListValue().GetValues()
	if len(lm) != 2*iface.LandmarkCount {
		return f, fmt.Errorf("face landmarks have %d values, want %d", len(lm), 2*iface.LandmarkCount)
	}
	f.Box = iface.Box{
		Left:   float32(box[0].GetNumberValue()),
		Top:    float32(box[1].GetNumberValue()),
		Right:  float32(box[2].GetNumberValue()),
		Bottom: float32(box[3].GetNumberValue()),
	}
	f.Score = float32(fields["score"].GetNumberValue())
	for i := range f.Landmarks {
		f.Landmarks[i] = iface.Point{
			X: float32(lm[2*i].GetNumberValue()),
			Y: float32(lm[2*i+1].GetNumberValue()),
		}
	}
	return f, nil
}

func (c *Client) Release() error {
	if c.conn == nil {
		return nil
	}
	conn := c.conn
	c.conn = nil
	defer conn.Close()

	req, err := structpb.NewStruct(map[string]any{"id": c.id})
	if err != nil {
		return err
	}
	resp := &structpb.Struct{}
	ctx, cancel := c.callContext()
	defer cancel()
	if err := conn.Invoke(ctx, MethodDestroy, req, resp); err != nil {
		return fmt.Errorf("DestroyEngine: %w", err)
	}
	if !resp.GetFields()["success"].GetBoolValue() {
		return fmt.Errorf("DestroyEngine failed: %s", resp.GetFields()["message"].GetStringValue())
	}
	return nil
}
