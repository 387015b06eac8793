package detector

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbTip     = 4
	IndexMCP     = 5
	IndexTip     = 8
	MiddleMCP    = 9
	MiddleTip    = 12
	RingMCP      = 13
	RingTip      = 16
	PinkyMCP     = 17
	PinkyTip     = 20
	NumLandmarks = 21
)

// Point3D represents a 3D point in space with x, y, z coordinates.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// HandPresent reports whether any hand scores at least minScore.
func HandPresent(hands []HandLandmarks, minScore float64) bool {
	for _, h := range hands {
		if h.Score >= minScore {
			return true
		}
	}
	return false
}
