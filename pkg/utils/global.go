package utils

import (
	"image"
	"time"
)

//PersonClass is the COCO class id the detector reports for a person
const PersonClass = 0

//DefaultConfidenceThreshold is the minimal confidence a detection needs to be treated as a person
const DefaultConfidenceThreshold = 0.5

//DefaultNMSThreshold is the IoU above which two person boxes are considered the same person
const DefaultNMSThreshold = 0.4

//DefaultUnitSaving is the electricity saving (kWh) credited per detected person per tick.
//It is a heuristic placeholder, not a measurement.
const DefaultUnitSaving = 0.1

//DefaultTickPeriod is the control loop period
const DefaultTickPeriod = 30 * time.Millisecond

//DefaultMaxResultAge is how long the async loop waits for a detection before treating the room as empty
const DefaultMaxResultAge = time.Second

//DefaultZoneCount is the number of zones when none is configured
const DefaultZoneCount = 4

//DefaultDetectorInputSize is the square input size fed to the YOLO network
const DefaultDetectorInputSize = 608

//DefaultZonePoints are used when no calibration points are configured
var DefaultZonePoints = []image.Point{{X: 520, Y: 108}, {X: 105, Y: 214}, {X: 820, Y: 255}, {X: 517, Y: 591}}

//DefaultActuatorIDs are the relay pins driven for each default zone, in zone order
var DefaultActuatorIDs = []string{"13", "12", "11", "10"}
