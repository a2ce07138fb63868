package detection

import (
	"context"
	"image"
	"sync/atomic"
)

//Frame is one captured image. Image holds the capture backend's pixel buffer (a *gocv.Mat for the
//camera in package video) and is released once every holder called Release.
type Frame struct {
	Seq    uint64
	Width  int
	Height int
	Image  interface{}

	refs    int32
	release func()
}

//NewFrame returns a frame holding one reference. release may be nil.
func NewFrame(seq uint64, width, height int, img interface{}, release func()) *Frame {
	return &Frame{Seq: seq, Width: width, Height: height, Image: img, refs: 1, release: release}
}

//Retain adds a reference and returns the frame
func (f *Frame) Retain() *Frame {
	atomic.AddInt32(&f.refs, 1)
	return f
}

//Release drops a reference, freeing the pixel buffer when it was the last one
func (f *Frame) Release() {
	if atomic.AddInt32(&f.refs, -1) == 0 && f.release != nil {
		f.release()
	}
}

//RawDetection is one detector output. The box is relative to the frame: center and size are fractions
//of the frame width/height.
type RawDetection struct {
	CenterX    float64
	CenterY    float64
	Width      float64
	Height     float64
	Confidence float32
	ClassID    int
}

//Detection is a confirmed person in pixel coordinates
type Detection struct {
	Box        image.Rectangle `json:"box"`
	Confidence float32         `json:"confidence"`
	ClassID    int             `json:"class_id"`
}

//Center returns the midpoint of the detection box
func (d Detection) Center() (x, y float64) {
	return float64(d.Box.Min.X+d.Box.Max.X) / 2, float64(d.Box.Min.Y+d.Box.Max.Y) / 2
}

//Detector runs object detection on a frame. Output order carries no meaning.
type Detector interface {
	Detect(ctx context.Context, frame *Frame) ([]RawDetection, error)
}

//DetectorFunc adapts a function to Detector
type DetectorFunc func(ctx context.Context, frame *Frame) ([]RawDetection, error)

//Detect calls f
func (f DetectorFunc) Detect(ctx context.Context, frame *Frame) ([]RawDetection, error) {
	return f(ctx, frame)
}
