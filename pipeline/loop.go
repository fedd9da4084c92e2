// Package pipeline drives the per-frame cycle: acquire, convert, infer,
// render, present and check for cancel. Every exit goes through Draining,
// which releases the model exactly once.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"FaceOverlay/engine"
	iface "FaceOverlay/interface"
	"FaceOverlay/logger"
	"FaceOverlay/monitor"
	"FaceOverlay/overlay"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Loop struct {
	source   iface.Source
	backend  iface.Backend
	display  iface.Display
	opts     Options
	renderer *overlay.Renderer
	runID    string

	state  atomic.Int32
	frames atomic.Int64
	faces  atomic.Int64
}

func New(source iface.Source, backend iface.Backend, display iface.Display, opts Options) *Loop {
	l := &Loop{
		source:   source,
		backend:  backend,
		display:  display,
		opts:     opts,
		renderer: overlay.NewRenderer(opts.Style),
		runID:    uuid.NewString(),
	}
	l.state.Store(int32(Starting))
	return l
}

func (l *Loop) State() State {
	return State(l.state.Load())
}

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
}

func (l *Loop) RunID() string {
	return l.runID
}

// Status is safe to call from other goroutines.
func (l *Loop) Status() Status {
	return Status{
		RunID:  l.runID,
		State:  l.State().String(),
		Frames: l.frames.Load(),
		Faces:  l.faces.Load(),
	}
}

// Run opens the source, loads the model and processes frames until the source
// ends, an inference fails, the quit key is pressed or ctx is cancelled. The
// returned error is nil for capture-end and cancellation.
func (l *Loop) Run(ctx context.Context) (Report, error) {
	rep := Report{RunID: l.runID}
	log := logger.Log().With(zap.String("run", l.runID))

	l.setState(Starting)
	if err := l.source.Open(); err != nil {
		log.Error("open video source failed", zap.String("stage", "capture"), zap.Error(err))
		l.closeDisplay(log)
		l.setState(Stopped)
		return rep, &StartupError{Stage: "capture", Err: err}
	}
	mc, err := engine.Initialize(l.backend, l.opts.ModelPath)
	if err != nil {
		fields := []zap.Field{zap.String("stage", "model"), zap.Error(err)}
		var le *engine.LoadError
		if errors.As(err, &le) {
			fields = append(fields, zap.Int("code", le.Code))
		}
		log.Error("initialize model failed", fields...)
		l.closeDisplay(log)
		l.closeSource(log)
		l.setState(Stopped)
		return rep, &StartupError{Stage: "model", Err: err}
	}
	cfg := mc.CheckConfig()
	log.Info("model ready",
		zap.String("backend", cfg.Backend),
		zap.String("model", cfg.ModelPath),
		zap.String("address", cfg.Address),
		zap.Float32("score_threshold", cfg.ScoreThreshold),
		zap.Float32("nms_threshold", cfg.NMSThreshold),
	)

	l.setState(Running)
	reason, runErr := l.run(ctx, mc, &rep, log)
	rep.Reason = reason

	l.setState(Draining)
	l.drain(mc, log)
	l.setState(Stopped)

	log.Info("loop stopped",
		zap.String("reason", string(reason)),
		zap.Int("frames", rep.Frames),
		zap.Int("inferences", rep.Inferences),
		zap.Int("faces", rep.Faces),
	)
	return rep, runErr
}

func (l *Loop) run(ctx context.Context, mc *engine.ModelContext, rep *Report, log *zap.Logger) (ExitReason, error) {
	for {
		if ctx.Err() != nil {
			return ReasonContextCancel, nil
		}
		frame, err := l.source.Read()
		if err != nil {
			if errors.Is(err, iface.ErrCaptureEnd) {
				return ReasonCaptureEnd, nil
			}
			log.Error("read frame failed", zap.String("stage", "capture"), zap.Error(err))
			return ReasonCaptureError, err
		}
		rep.Frames++
		l.frames.Add(1)
		monitor.FramesTotal.Inc()

		reason, err := l.process(frame, mc, rep, log.With(zap.Int("frame", rep.Frames)))
		if cerr := frame.Close(); cerr != nil {
			log.Warn("close frame failed", zap.Error(cerr))
		}
		if reason != ReasonNone {
			return reason, err
		}

		if l.opts.FrameDelay > 0 {
			select {
			case <-ctx.Done():
				return ReasonContextCancel, nil
			case <-time.After(l.opts.FrameDelay):
			}
		}
	}
}

// process handles one frame. It returns ReasonNone to keep running.
func (l *Loop) process(frame iface.Frame, mc *engine.ModelContext, rep *Report, log *zap.Logger) (ExitReason, error) {
	buf, err := frame.Prepare()
	if err != nil {
		log.Error("prepare frame failed", zap.String("stage", "convert"), zap.Error(err))
		return ReasonCaptureError, fmt.Errorf("prepare frame %d: %w", rep.Frames, err)
	}
	log.Debug("image buffer",
		zap.Int("width", buf.Width),
		zap.Int("height", buf.Height),
		zap.Int("width_stride", buf.WidthStride),
		zap.Int("height_stride", buf.HeightStride),
		zap.Stringer("format", buf.Format),
		zap.Int("size", buf.Size),
	)

	start := time.Now()
	res, err := mc.Infer(buf)
	monitor.InferenceSeconds.Observe(time.Since(start).Seconds())
	monitor.InferenceTotal.Inc()
	rep.Inferences++
	if err != nil {
		monitor.InferenceErrors.Inc()
		fields := []zap.Field{zap.String("stage", "inference"), zap.Error(err)}
		var ie *engine.InferenceError
		if errors.As(err, &ie) {
			fields = append(fields, zap.Int("code", ie.Code))
		}
		log.Error("inference failed", fields...)
		return ReasonInferenceError, err
	}
	for i, f := range res.Slice() {
		log.Debug("face",
			zap.Int("index", i),
			zap.Float32("left", f.Box.Left),
			zap.Float32("top", f.Box.Top),
			zap.Float32("right", f.Box.Right),
			zap.Float32("bottom", f.Box.Bottom),
			zap.Float32("score", f.Score),
		)
	}

	l.renderer.Draw(frame.Canvas(buf), &res)
	rep.Faces += res.Count
	l.faces.Add(int64(res.Count))
	monitor.FacesTotal.Add(float64(res.Count))

	exported := false
	if l.opts.SnapshotAt > 0 && rep.Frames == l.opts.SnapshotAt {
		exported = l.snapshot(frame, rep, log)
	}

	if err := l.display.Show(frame); err != nil {
		log.Error("present frame failed", zap.String("stage", "display"), zap.Error(err))
		return ReasonDisplayError, err
	}

	key := l.display.PollKey()
	if key >= 0 {
		key &= 0xff
		switch {
		case l.opts.QuitKey >= 0 && key == l.opts.QuitKey:
			log.Info("quit key pressed")
			return ReasonUserCancel, nil
		case l.opts.SnapshotKey >= 0 && key == l.opts.SnapshotKey && !exported:
			l.snapshot(frame, rep, log)
		}
	}
	return ReasonNone, nil
}

// snapshot exports the frame and reports whether a file was written.
func (l *Loop) snapshot(frame iface.Frame, rep *Report, log *zap.Logger) bool {
	name := fmt.Sprintf("snapshot-%s-%06d.jpg", l.runID[:8], rep.Frames)
	path := filepath.Join(l.opts.SnapshotDir, name)
	if err := frame.Snapshot(path); err != nil {
		log.Warn("snapshot failed", zap.String("path", path), zap.Error(err))
		return false
	}
	rep.Snapshots = append(rep.Snapshots, path)
	log.Info("snapshot written", zap.String("path", path))
	return true
}

// drain releases the model once and closes the collaborators. Failures are
// logged and never change the run's outcome.
func (l *Loop) drain(mc *engine.ModelContext, log *zap.Logger) {
	if err := mc.Release(); err != nil {
		log.Error("release model failed", zap.String("stage", "release"), zap.Error(err))
	}
	l.closeDisplay(log)
	l.closeSource(log)
}

func (l *Loop) closeDisplay(log *zap.Logger) {
	if l.display == nil {
		return
	}
	if err := l.display.Close(); err != nil {
		log.Warn("close display failed", zap.Error(err))
	}
}

func (l *Loop) closeSource(log *zap.Logger) {
	if err := l.source.Close(); err != nil {
		log.Warn("close video source failed", zap.Error(err))
	}
}
