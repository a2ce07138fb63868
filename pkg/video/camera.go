package video

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/chenBenjamin97/smart-room/pkg/detection"
	"github.com/chenBenjamin97/smart-room/pkg/room"
	"gocv.io/x/gocv"
)

//Camera reads frames from a capture device, a video file or a stream url
type Camera struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
	seq     uint64
}

//OpenCamera opens given device. A numeric device is a camera index ("0" is the default webcam), anything
//else is passed to OpenCV as a file name or url.
func OpenCamera(device string) (*Camera, error) {
	capture, err := gocv.OpenVideoCapture(parseDevice(device))
	if err != nil {
		return nil, fmt.Errorf("OpenCamera: Error opening '%s', got '%v'", device, err)
	}

	return &Camera{capture: capture}, nil
}

func parseDevice(device string) interface{} {
	if id, err := strconv.Atoi(device); err == nil {
		return id
	}
	return device
}

//Next reads the next frame. The returned frame owns a new Mat which is closed on its last Release.
func (c *Camera) Next() (*detection.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil, room.ErrNoFrame
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, room.ErrNoFrame
	}

	c.seq++
	return detection.NewFrame(c.seq, mat.Cols(), mat.Rows(), &mat, func() { mat.Close() }), nil
}

//Size returns the capture resolution reported by the device
func (c *Camera) Size() (width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return 0, 0
	}
	return int(c.capture.Get(gocv.VideoCaptureFrameWidth)), int(c.capture.Get(gocv.VideoCaptureFrameHeight))
}

//Close releases the capture device. Next returns room.ErrNoFrame afterwards.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil
	}
	err := c.capture.Close()
	c.capture = nil
	return err
}
