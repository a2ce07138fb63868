package utils

import (
	"fmt"
	"image"
	"strconv"
	"strings"
)

//InSlice returns true if given string appears in given slice
func InSlice(lookingFor string, slice []string) bool {
	for _, s := range slice {
		if s == lookingFor {
			return true
		}
	}

	return false
}

//ParsePoint parses a "x,y" or "x:y" pair of pixel coordinates. The "x:y" form survives comma separated
//lists such as SMARTROOM_ZONES_POINTS="520:108,105:214".
func ParsePoint(s string) (image.Point, error) {
	sep := ","
	if strings.Contains(s, ":") {
		sep = ":"
	}

	parts := strings.Split(s, sep)
	if len(parts) != 2 {
		return image.Point{}, fmt.Errorf("ParsePoint: Error, expected 'x,y' or 'x:y' but got '%s'", s)
	}

	x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return image.Point{}, fmt.Errorf("ParsePoint: Error parsing x of '%s', got '%v'", s, err)
	}

	y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return image.Point{}, fmt.Errorf("ParsePoint: Error parsing y of '%s', got '%v'", s, err)
	}

	return image.Pt(x, y), nil
}

//ClampRect fixes rectangle values in case they are out of frame's range
func ClampRect(r image.Rectangle, frameWidth, frameHeight int) image.Rectangle {
	return r.Intersect(image.Rect(0, 0, frameWidth, frameHeight))
}
