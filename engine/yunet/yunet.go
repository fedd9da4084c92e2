// Package yunet runs face detection in-process with OpenCV's YuNet detector,
// which reports a box, five landmarks and a score per face.
package yunet

import (
	"FaceOverlay/imagebuf"
	iface "FaceOverlay/interface"
	"errors"
	"fmt"
	"image"
	"path/filepath"

	"gocv.io/x/gocv"
)

// YuNet output row layout: x, y, w, h, five landmark (x, y) pairs, score.
const (
	colX        = 0
	colY        = 1
	colW        = 2
	colH        = 3
	colLandmark = 4
	colScore    = 14
	rowWidth    = 15
)

type Detector struct {
	ModelPath string
	Conf      float32
	Nms       float32
	TopK      int

	det   *gocv.FaceDetectorYN
	bgr   gocv.Mat
	faces gocv.Mat
	input image.Point
}

func New(conf, nms float32, topK int) *Detector {
	return &Detector{Conf: conf, Nms: nms, TopK: topK}
}

func (d *Detector) Init(modelPath string) error {
	if filepath.Ext(modelPath) != ".onnx" {
		return fmt.Errorf("yunet.Init only supports .onnx, got %s", filepath.Base(modelPath))
	}
	input := image.Pt(320, 320)
	// a model OpenCV cannot parse yields a NULL detector and a pending exception
	gocv.ClearLastException()
	fd := gocv.NewFaceDetectorYN(modelPath, "", input)
	if err := gocv.LastExceptionError(); err != nil {
		return fmt.Errorf("load %s: %w", filepath.Base(modelPath), err)
	}
	d.input = input
	fd.SetScoreThreshold(d.Conf)
	fd.SetNMSThreshold(d.Nms)
	fd.SetTopK(d.TopK)
	d.det = &fd
	d.ModelPath = modelPath
	d.bgr = gocv.NewMat()
	d.faces = gocv.NewMat()
	return nil
}

func (d *Detector) CheckConfig() iface.EngineConfig {
	return iface.EngineConfig{
		Backend:        "yunet",
		ModelPath:      d.ModelPath,
		ScoreThreshold: d.Conf,
		NMSThreshold:   d.Nms,
		TopK:           d.TopK,
	}
}

func (d *Detector) Infer(img iface.ImageBuffer) ([]iface.DetectedFace, error) {
	if d.det == nil {
		return nil, errors.New("detector not initialized")
	}
	var code gocv.ColorConversionCode
	switch img.Format {
	case iface.FormatRGB888:
		code = gocv.ColorRGBToBGR
	case iface.FormatBGR888:
		code = -1
	default:
		return nil, fmt.Errorf("yunet.Infer does not support %s input", img.Format)
	}

	src, err := gocv.NewMatFromBytes(img.Height, img.Width, gocv.MatTypeCV8UC3, imagebuf.Pack(img))
	if err != nil {
		return nil, fmt.Errorf("build input mat: %w", err)
	}
	defer src.Close()
	if code < 0 {
		err = src.CopyTo(&d.bgr)
	} else {
		err = gocv.CvtColor(src, &d.bgr, code)
	}
	if err != nil {
		return nil, fmt.Errorf("convert input: %w", err)
	}

	if sz := image.Pt(img.Width, img.Height); sz != d.input {
		d.det.SetInputSize(sz)
		d.input = sz
	}
	// Detect swallows OpenCV exceptions and reports zero faces
	gocv.ClearLastException()
	d.det.Detect(d.bgr, &d.faces)
	if err := gocv.LastExceptionError(); err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	faces := make([]iface.DetectedFace, 0, d.faces.Rows())
	for i := 0; i < d.faces.Rows(); i++ {
		if d.faces.Cols() < rowWidth {
			return nil, fmt.Errorf("unexpected detector output width %d", d.faces.Cols())
		}
		x := d.faces.GetFloatAt(i, colX)
		y := d.faces.GetFloatAt(i, colY)
		f := iface.DetectedFace{
			Box: iface.Box{
				Left:   x,
				Top:    y,
				Right:  x + d.faces.GetFloatAt(i, colW),
				Bottom: y + d.faces.GetFloatAt(i, colH),
			},
			Score: d.faces.GetFloatAt(i, colScore),
		}
		// YuNet lists the eye on the image's left first, matching our landmark order.
		for j := 0; j < iface.LandmarkCount; j++ {
			f.Landmarks[j] = iface.Point{
				X: d.faces.GetFloatAt(i, colLandmark+2*j),
				Y: d.faces.GetFloatAt(i, colLandmark+2*j+1),
			}
		}
		faces = append(faces, f)
	}
	return faces, nil
}

func (d *Detector) Release() error {
	if d.det == nil {
		return nil
	}
	d.det.Close()
	d.det = nil
	var errs []error
	if err := d.bgr.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := d.faces.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
