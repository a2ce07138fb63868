package detection

import (
	"image"
	"sort"

	"github.com/chenBenjamin97/smart-room/pkg/utils"
)

//Filter turns raw detector output into confirmed person detections
type Filter struct {
	ConfidenceThreshold float32
	NMSThreshold        float64
	PersonClass         int
}

//NewFilter returns a filter keeping the person class
func NewFilter(confidenceThreshold float32, nmsThreshold float64) Filter {
	return Filter{
		ConfidenceThreshold: confidenceThreshold,
		NMSThreshold:        nmsThreshold,
		PersonClass:         utils.PersonClass,
	}
}

//DefaultFilter uses a 0.5 confidence threshold and a 0.4 IoU threshold
func DefaultFilter() Filter {
	return NewFilter(utils.DefaultConfidenceThreshold, utils.DefaultNMSThreshold)
}

//Apply keeps person detections at or above the confidence threshold, converts their relative boxes to
//pixel boxes of a width x height frame and suppresses overlapping boxes. An empty frame yields nothing.
func (f Filter) Apply(raw []RawDetection, width, height int) []Detection {
	if width <= 0 || height <= 0 || len(raw) == 0 {
		return nil
	}

	dets := make([]Detection, 0, len(raw))
	for _, r := range raw {
		if !f.accept(r.ClassID, r.Confidence) {
			continue
		}
		dets = append(dets, Detection{
			Box:        toPixels(r, width, height),
			Confidence: r.Confidence,
			ClassID:    r.ClassID,
		})
	}

	return Suppress(dets, f.NMSThreshold)
}

//Refine applies the class, confidence and overlap rules to detections already in pixel space.
//Refine(Refine(d)) equals Refine(d).
func (f Filter) Refine(dets []Detection) []Detection {
	kept := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if f.accept(d.ClassID, d.Confidence) {
			kept = append(kept, d)
		}
	}

	return Suppress(kept, f.NMSThreshold)
}

func (f Filter) accept(classID int, confidence float32) bool {
	return classID == f.PersonClass && confidence >= f.ConfidenceThreshold
}

//toPixels converts a center/size box given in frame fractions into a pixel box (x_min, y_min, w, h)
func toPixels(r RawDetection, width, height int) image.Rectangle {
	cx := int(r.CenterX * float64(width))
	cy := int(r.CenterY * float64(height))
	w := int(r.Width * float64(width))
	h := int(r.Height * float64(height))
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}

	xMin := int(float64(cx) - float64(w)/2)
	yMin := int(float64(cy) - float64(h)/2)

	return image.Rect(xMin, yMin, xMin+w, yMin+h)
}

//Suppress is greedy non-max suppression: boxes are visited by descending confidence (input order on ties)
//and a box is dropped when its IoU with an already kept box is above threshold. The result is ordered
//by descending confidence.
func Suppress(dets []Detection, threshold float64) []Detection {
	if len(dets) == 0 {
		return nil
	}

	order := make([]int, len(dets))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return dets[order[a]].Confidence > dets[order[b]].Confidence
	})

	kept := make([]Detection, 0, len(dets))
mainLoop:
	for _, i := range order {
		for _, k := range kept {
			if IoU(dets[i].Box, k.Box) > threshold {
				continue mainLoop
			}
		}
		kept = append(kept, dets[i])
	}

	return kept
}

//IoU returns intersection over union of two boxes, 0 when either box is empty
func IoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}

	interArea := area(inter)
	union := area(a) + area(b) - interArea
	if union <= 0 {
		return 0
	}

	return float64(interArea) / float64(union)
}

func area(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}
