package pipeline

import (
	iface "FaceOverlay/interface"
	"io"

	"github.com/schollz/progressbar/v3"
)

// Headless replaces the window when no display is available. Each presented
// frame advances a progress bar. It never reports a key.
type Headless struct {
	total func() int
	w     io.Writer
	bar   *progressbar.ProgressBar
}

// NewHeadless writes progress to w. total is asked once, on the first frame,
// since a source only knows its length after it is opened. A nil total or a
// non-positive answer shows an open-ended bar.
func NewHeadless(total func() int, w io.Writer) *Headless {
	return &Headless{total: total, w: w}
}

func (h *Headless) Show(iface.Frame) error {
	if h.bar == nil {
		n := -1
		if h.total != nil {
			if t := h.total(); t > 0 {
				n = t
			}
		}
		h.bar = progressbar.NewOptions(n,
			progressbar.OptionSetDescription("frames"),
			progressbar.OptionSetWriter(h.w),
			progressbar.OptionShowCount(),
		)
	}
	return h.bar.Add(1)
}

func (h *Headless) PollKey() int {
	return -1
}

func (h *Headless) Close() error {
	if h.bar == nil {
		return nil
	}
	return h.bar.Finish()
}

// Shown is the number of frames presented so far.
func (h *Headless) Shown() int {
	if h.bar == nil {
		return 0
	}
	return int(h.bar.State().CurrentNum)
}
