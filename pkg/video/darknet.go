package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"sync"

	"github.com/chenBenjamin97/smart-room/pkg/detection"
	"github.com/chenBenjamin97/smart-room/pkg/utils"
	"gocv.io/x/gocv"
)

//ErrNotMat is returned when a frame does not carry a gocv Mat
var ErrNotMat = errors.New("video: frame image is not a gocv.Mat")

//DarknetConfig locates a YOLO model in Darknet format
type DarknetConfig struct {
	ConfigPath  string
	WeightsPath string
	InputSize   int
	Backend     string //"default", "opencv", "cuda", ...
	Target      string //"cpu", "cuda", "fp16", ...
	//MinConfidence drops rows the network is not even remotely sure about, keeping the output small.
	//The detection filter applies the real threshold.
	MinConfidence float32
}

//Darknet runs a YOLOv3 network with OpenCV's DNN module
type Darknet struct {
	mu            sync.Mutex
	net           gocv.Net
	outputNames   []string
	inputSize     int
	minConfidence float32
}

//NewDarknet loads the model
func NewDarknet(cfg DarknetConfig) (*Darknet, error) {
	net := gocv.ReadNetFromDarknet(cfg.ConfigPath, cfg.WeightsPath)
	if net.Empty() {
		return nil, fmt.Errorf("NewDarknet: Could not load model '%s' / '%s'", cfg.ConfigPath, cfg.WeightsPath)
	}

	if cfg.Backend != "" {
		if err := net.SetPreferableBackend(gocv.ParseNetBackend(cfg.Backend)); err != nil {
			log.Printf("NewDarknet: Error setting backend '%s', got '%v'", cfg.Backend, err)
		}
	}
	if cfg.Target != "" {
		if err := net.SetPreferableTarget(gocv.ParseNetTarget(cfg.Target)); err != nil {
			log.Printf("NewDarknet: Error setting target '%s', got '%v'", cfg.Target, err)
		}
	}

	layerNames := net.GetLayerNames()
	outputNames := make([]string, 0)
	for _, id := range net.GetUnconnectedOutLayers() {
		outputNames = append(outputNames, layerNames[id-1])
	}

	size := cfg.InputSize
	if size <= 0 {
		size = utils.DefaultDetectorInputSize
	}

	return &Darknet{
		net:           net,
		outputNames:   outputNames,
		inputSize:     size,
		minConfidence: cfg.MinConfidence,
	}, nil
}

//Detect runs a forward pass and returns the best class of every output row
func (d *Darknet) Detect(ctx context.Context, frame *detection.Frame) ([]detection.RawDetection, error) {
	mat, ok := frame.Image.(*gocv.Mat)
	if !ok || mat == nil || mat.Empty() {
		return nil, ErrNotMat
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	blob := gocv.BlobFromImage(*mat, 1.0/255.0, image.Pt(d.inputSize, d.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	outputs := d.net.ForwardLayers(d.outputNames)
	d.mu.Unlock()

	raw := make([]detection.RawDetection, 0)
	for i := range outputs {
		out := outputs[i]
		row := make([]float32, out.Cols())
		for r := 0; r < out.Rows(); r++ {
			for c := range row {
				row[c] = out.GetFloatAt(r, c)
			}
			if det, ok := decodeRow(row, d.minConfidence); ok {
				raw = append(raw, det)
			}
		}
		out.Close()
	}

	return raw, nil
}

//decodeRow reads one YOLO output row: center x, center y, width, height (frame fractions), objectness
//and one score per class. The row's class is the best scoring one.
func decodeRow(row []float32, minConfidence float32) (detection.RawDetection, bool) {
	if len(row) < 6 {
		return detection.RawDetection{}, false
	}

	classID, confidence := 0, row[5]
	for i, score := range row[5:] {
		if score > confidence {
			classID, confidence = i, score
		}
	}

	if confidence <= 0 || confidence < minConfidence {
		return detection.RawDetection{}, false
	}

	return detection.RawDetection{
		CenterX:    float64(row[0]),
		CenterY:    float64(row[1]),
		Width:      float64(row[2]),
		Height:     float64(row[3]),
		Confidence: confidence,
		ClassID:    classID,
	}, true
}

//Close frees the network
func (d *Darknet) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
