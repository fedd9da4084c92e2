// Package remote talks to a detection engine served over HTTP.
package remote

import (
	"FaceOverlay/imagebuf"
	iface "FaceOverlay/interface"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

type initRequest struct {
	ModelPath  string  `json:"modelPath"`
	Confidence float32 `json:"confidence"`
	Iou        float32 `json:"iou"`
}

type initResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

type wireFace struct {
	Box       [4]float32    `json:"box"` // left, top, right, bottom
	Score     float32       `json:"score"`
	Landmarks [5][2]float32 `json:"landmarks"`
}

type inferResponse struct {
	Success bool       `json:"success"`
	Faces   []wireFace `json:"faces"`
	Message string     `json:"message"`
}

type releaseResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type Client struct {
	Address        string
	Timeout        time.Duration
	ScoreThreshold float32
	NMSThreshold   float32

	client    *resty.Client
	id        string
	modelPath string
}

func New(address string, timeout time.Duration, conf, nms float32) *Client {
	return &Client{Address: address, Timeout: timeout, ScoreThreshold: conf, NMSThreshold: nms}
}

// RemoteArtifact reports that the model path names a file on the engine host.
func (c *Client) RemoteArtifact() bool { return true }

func (c *Client) Init(modelPath string) error {
	c.client = resty.New().SetBaseURL(c.Address).SetTimeout(c.Timeout)
	var respBody initResponse
	resp, err := c.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(initRequest{ModelPath: modelPath, Confidence: c.ScoreThreshold, Iou: c.NMSThreshold}).
		SetResult(&respBody).
		SetError(&respBody).
		Post("/api/models/init")
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}
	if resp.IsError() || !respBody.Success {
		return fmt.Errorf("server returned %s: %s", resp.Status(), respBody.Message)
	}
	if respBody.ID == "" {
		return errors.New("server returned no engine id")
	}
	c.id = respBody.ID
	c.modelPath = modelPath
	return nil
}

func (c *Client) CheckConfig() iface.EngineConfig {
	return iface.EngineConfig{
		Backend:        "http",
		ModelPath:      c.modelPath,
		Address:        c.Address,
		ScoreThreshold: c.ScoreThreshold,
		NMSThreshold:   c.NMSThreshold,
	}
}

func (c *Client) Infer(img iface.ImageBuffer) ([]iface.DetectedFace, error) {
	if c.id == "" {
		return nil, errors.New("engine not initialized")
	}
	var respBody inferResponse
	resp, err := c.client.R().
		SetHeader("Content-Type", "application/octet-stream").
		SetPathParam("id", c.id).
		SetQueryParams(map[string]string{
			"width":  strconv.Itoa(img.Width),
			"height": strconv.Itoa(img.Height),
			"format": img.Format.String(),
		}).
		SetBody(imagebuf.Pack(img)).
		SetResult(&respBody).
		SetError(&respBody).
		Post("/api/models/{id}/infer")
	if err != nil {
		return nil, fmt.Errorf("request error: %w", err)
	}
	if resp.IsError() || !respBody.Success {
		return nil, fmt.Errorf("server returned %s: %s", resp.Status(), respBody.Message)
	}
	faces := make([]iface.DetectedFace, len(respBody.Faces))
	for i, wf := range respBody.Faces {
		faces[i] = iface.DetectedFace{
			Box:   iface.Box{Left: wf.Box[0], Top: wf.Box[1], Right: wf.Box[2], Bottom: wf.Box[3]},
			Score: wf.Score,
		}
		for j, p := range wf.Landmarks {
			faces[i].Landmarks[j] = iface.Point{X: p[0], Y: p[1]}
		}
	}
	return faces, nil
}

func (c *Client) Release() error {
	if c.id == "" {
		return nil
	}
	var respBody releaseResponse
	resp, err := c.client.R().
		SetPathParam("id", c.id).
		SetResult(&respBody).
		SetError(&respBody).
		Post("/api/models/{id}/release")
	c.id = ""
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}
	if resp.IsError() || !respBody.Success {
		return fmt.Errorf("server returned %s: %s", resp.Status(), respBody.Message)
	}
	return nil
}
