package video

import (
	"fmt"
	"image"
	"image/color"
	"log"
	"sync"
	"time"

	"github.com/chenBenjamin97/smart-room/pkg/control"
	"github.com/chenBenjamin97/smart-room/pkg/detection"
	"github.com/chenBenjamin97/smart-room/pkg/room"
	"github.com/chenBenjamin97/smart-room/pkg/utils"
	"github.com/chenBenjamin97/smart-room/pkg/zone"
	"gocv.io/x/gocv"
)

var personColor = color.RGBA{0, 0, 255, 0}
var nearestZoneColor = color.RGBA{0, 255, 0, 0}
var zoneOnColor = color.RGBA{0, 200, 255, 0}
var zoneOffColor = color.RGBA{128, 128, 128, 0}
var whiteRGB = color.RGBA{255, 255, 255, 0}

//Overlay is a read-only observer of the control loop. It draws the latest detections and zones on the
//frame and keeps the result as a JPEG snapshot.
type Overlay struct {
	table    *zone.Table
	interval time.Duration

	mu       sync.RWMutex
	jpeg     []byte
	rendered time.Time
}

//NewOverlay renders at most once per interval
func NewOverlay(table *zone.Table, interval time.Duration) *Overlay {
	return &Overlay{table: table, interval: interval}
}

//Observe implements room.Observer
func (o *Overlay) Observe(frame *detection.Frame, result room.TickResult) {
	o.mu.RLock()
	due := time.Since(o.rendered) >= o.interval
	o.mu.RUnlock()
	if !due {
		return
	}

	mat, ok := frame.Image.(*gocv.Mat)
	if !ok || mat == nil || mat.Empty() {
		return
	}

	canvas := mat.Clone()
	defer canvas.Close()

	plotZones(&canvas, o.table, result.States)
	for i, det := range result.Detections {
		plotPersonOnFrame(&canvas, det, result.Assignment.Zones[i], o.table)
	}
	plotStatus(&canvas, result)

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, canvas)
	if err != nil {
		log.Printf("Overlay: Error encoding frame %d, got '%v'", frame.Seq, err)
		return
	}
	defer buf.Close()

	jpeg := make([]byte, buf.Len())
	copy(jpeg, buf.GetBytes())

	o.mu.Lock()
	o.jpeg = jpeg
	o.rendered = time.Now()
	o.mu.Unlock()
}

//Snapshot returns the last rendered JPEG
func (o *Overlay) Snapshot() ([]byte, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.jpeg, o.jpeg != nil
}

//plotZones marks every zone point, filled when its actuator is on
func plotZones(frame *gocv.Mat, table *zone.Table, states []bool) {
	for _, z := range table.Zones() {
		c := zoneOffColor
		if z.ID < len(states) && states[z.ID] {
			c = zoneOnColor
		}
		gocv.Circle(frame, z.Point, 10, c, 2)
		gocv.PutText(frame, zoneLabel(z.ID), image.Pt(z.Point.X+12, z.Point.Y+5), gocv.FontHersheySimplex, 0.6, c, 2)
	}
}

//plotPersonOnFrame plots given bounding box with its confidence and the zone it was assigned to
func plotPersonOnFrame(frame *gocv.Mat, det detection.Detection, zoneID int, table *zone.Table) {
	box := utils.ClampRect(det.Box, frame.Cols(), frame.Rows())
	gocv.Rectangle(frame, box, personColor, 2)

	startPointFirstLine := image.Pt(box.Min.X, box.Min.Y-30)
	startPointSecondLine := image.Pt(box.Min.X, box.Min.Y-10)
	gocv.PutText(frame, nearestLabel(zoneID), startPointFirstLine, gocv.FontHersheySimplex, 0.9, nearestZoneColor, 2)
	gocv.PutText(frame, personLabel(det.Confidence), startPointSecondLine, gocv.FontHersheySimplex, 0.5, personColor, 2)

	if z, ok := table.Zone(zoneID); ok {
		gocv.Circle(frame, z.Point, 10, nearestZoneColor, -1) //thickness -1 == filled circle
	}
}

//plotStatus writes mode and statistics in the top left corner
func plotStatus(frame *gocv.Mat, result room.TickResult) {
	textBackgroundRect := image.Rect(0, 0, 330, 70)
	gocv.Rectangle(frame, textBackgroundRect, color.RGBA{0, 0, 0, 0}, -1)

	gocv.PutText(frame, modeLabel(result.Mode), image.Pt(8, 20), gocv.FontHersheyPlain, 1.2, whiteRGB, 1)
	gocv.PutText(frame, fmt.Sprintf("Total People: %d", result.Stats.TotalPeople), image.Pt(8, 40), gocv.FontHersheyPlain, 1.2, whiteRGB, 1)
	gocv.PutText(frame, fmt.Sprintf("Electricity Saved: %.2f kWh", result.Stats.ElectricitySaved), image.Pt(8, 60), gocv.FontHersheyPlain, 1.2, whiteRGB, 1)
}

func personLabel(confidence float32) string {
	return fmt.Sprintf("Person %.2f", confidence)
}

//nearestLabel numbers zones from 1 for display
func nearestLabel(zoneID int) string {
	return fmt.Sprintf("Nearest Point: %d", zoneID+1)
}

func zoneLabel(zoneID int) string {
	return fmt.Sprintf("Z%d", zoneID+1)
}

func modeLabel(m control.Mode) string {
	if m == control.Manual {
		return "Mode: Manual"
	}
	return "Mode: Automatic"
}
