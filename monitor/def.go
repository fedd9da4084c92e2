package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	"FaceOverlay/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// Registry holds every collector of this package. It is separate from the
// default registry so /metrics only shows overlay metrics.
var Registry = prometheus.NewRegistry()

var (
	FramesTotal = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Name: "overlay_frames_total",
		Help: "Total number of frames read from the source",
	})
	InferenceTotal = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Name: "overlay_inference_total",
		Help: "Total number of inference calls",
	})
	InferenceErrors = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Name: "overlay_inference_errors_total",
		Help: "Total number of failed inference calls",
	})
	FacesTotal = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Name: "overlay_faces_total",
		Help: "Total number of faces drawn",
	})
	InferenceSeconds = promauto.With(Registry).NewHistogram(prometheus.HistogramOpts{
		Name:    "overlay_inference_seconds",
		Help:    "Inference latency in seconds",
		Buckets: []float64{.005, .01, .02, .04, .08, .16, .32, .64},
	})
	memUsage = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Name: "memory_usage_Megabytes",
		Help: "Memory usage in Megabytes",
	})
	cpuUsage = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Name: "cpu_usage_percent",
		Help: "CPU usage in percent",
	})
)

// StatusFunc reports the current loop status for /api/status.
type StatusFunc func() gin.H

func Router(status StatusFunc) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})))
	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/api/status", func(c *gin.Context) {
		if status == nil {
			c.JSON(http.StatusOK, gin.H{})
			return
		}
		c.JSON(http.StatusOK, status())
	})
	return r
}

func CheckProcessInfo(p *process.Process) {
	if memInfo, err := p.MemoryInfo(); err == nil {
		memUsage.Set(float64(memInfo.RSS / 1024 / 1024))
	}
	if cpuPercent, err := p.CPUPercent(); err == nil {
		cpuUsage.Set(math.Round(cpuPercent*100) / 100)
	}
}

// StartMon serves metrics and status on port and samples process usage until
// ctx is done.
func StartMon(ctx context.Context, port int, status StatusFunc) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return fmt.Errorf("monitor: %w", err)
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: Router(status),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log().Error("monitor server ListenAndServe error", zap.Error(err))
		}
	}()
	logger.Log().Info("monitor server started", zap.Int("port", port))

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
checkPcs:
	for {
		select {
		case <-ctx.Done():
			break checkPcs
		case <-ticker.C:
			CheckProcessInfo(p)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("monitor server shutdown: %w", err)
	}
	return nil
}
