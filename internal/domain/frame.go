package domain

import (
	"math"
	"sort"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// KeypointNames is the 17 point COCO body layout, in index order.
var KeypointNames = []string{
	"nose",
	"left_eye", "right_eye",
	"left_ear", "right_ear",
	"left_shoulder", "right_shoulder",
	"left_elbow", "right_elbow",
	"left_wrist", "right_wrist",
	"left_hip", "right_hip",
	"left_knee", "right_knee",
	"left_ankle", "right_ankle",
}

// Keypoint is a pixel-space body point.
type Keypoint struct {
	X          float64  `bson:"x" json:"x"`
	Y          float64  `bson:"y" json:"y"`
	Confidence *float64 `bson:"confidence,omitempty" json:"confidence,omitempty"`
}

// Angle is a joint angle in degrees measured at Middle between Start and End.
type Angle struct {
	Start  string  `bson:"start" json:"start"`
	Middle string  `bson:"middle" json:"middle"`
	End    string  `bson:"end" json:"end"`
	Angle  float64 `bson:"angle" json:"angle"`
	Name   string  `bson:"name" json:"name"`
}

// Improvement suggests moving the angle at AngleIndex towards TargetAngle.
type Improvement struct {
	AngleIndex  int     `bson:"angle_index" json:"angle_index"`
	TargetAngle float64 `bson:"target_angle" json:"target_angle"`
	Direction   string  `bson:"direction" json:"direction"`
	Magnitude   float64 `bson:"magnitude" json:"magnitude"`
	Priority    string  `bson:"priority" json:"priority"`
}

// LegacyFrame is the fixed schema once embedded in ProcessedData.frames.
type LegacyFrame struct {
	FrameNumber int            `bson:"frame_number" json:"frame_number"`
	Timestamp   float64        `bson:"timestamp,omitempty" json:"timestamp,omitempty"`
	Persons     []LegacyPerson `bson:"persons" json:"persons"`
}

type LegacyPerson struct {
	PersonID     int                 `bson:"person_id" json:"person_id"`
	Keypoints    map[string]Keypoint `bson:"keypoints" json:"keypoints"`
	Angles       []Angle             `bson:"angles" json:"angles"`
	Improvements []Improvement       `bson:"improvements" json:"improvements"`
}

// FrameSource tags which schema a canonical Frame was built from.
type FrameSource string

const (
	FrameSourceLegacy   FrameSource = "legacy"
	FrameSourceAnalysis FrameSource = "analysis"
)

// Frame is the canonical per-frame representation served to clients.
type Frame struct {
	Index          int          `json:"index"`
	Source         FrameSource  `json:"source"`
	Phase          string       `json:"phase,omitempty"`
	TechnicalScore *float64     `json:"technical_score,omitempty"`
	PoseQuality    *PoseQuality `json:"pose_quality,omitempty"`
	People         []Pose       `json:"people"`
}

// Pose is one detected person in a frame.
type Pose struct {
	Keypoints    map[string]Keypoint `json:"keypoints"`
	Angles       []Angle             `json:"angles"`
	Improvements []Improvement       `json:"improvements"`
}

// NormalizeLegacyFrames converts embedded legacy frames into canonical frames.
func NormalizeLegacyFrames(frames []LegacyFrame) []Frame {
	out := make([]Frame, 0, len(frames))
	for _, f := range frames {
		frame := Frame{Index: f.FrameNumber, Source: FrameSourceLegacy, People: make([]Pose, 0, len(f.Persons))}
		for _, p := range f.Persons {
			frame.People = append(frame.People, Pose{
				Keypoints:    nonNilKeypoints(p.Keypoints),
				Angles:       nonNilAngles(p.Angles),
				Improvements: nonNilImprovements(p.Improvements),
			})
		}
		out = append(out, frame)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// NormalizeFrameAnalysis converts the free-form frame_analysis entries written by the AI
// service into canonical frames. Unknown keys are ignored; entries without an index
// take their position in the slice.
func NormalizeFrameAnalysis(raw []bson.M) []Frame {
	out := make([]Frame, 0, len(raw))
	for i, entry := range raw {
		m := asMap(entry)
		frame := Frame{Index: i, Source: FrameSourceAnalysis}
		for _, key := range []string{"frame_index", "frame_number", "frame", "index"} {
			if v, ok := toFloat(m[key]); ok {
				frame.Index = int(v)
				break
			}
		}
		if phase, ok := m["phase"].(string); ok {
			frame.Phase = phase
		}
		if score, ok := toFloat(m["technical_score"]); ok {
			frame.TechnicalScore = &score
		}
		if pq := asMap(m["pose_quality"]); pq != nil {
			q := PoseQuality{}
			q.Balance, _ = toFloat(pq["balance"])
			q.Symmetry, _ = toFloat(pq["symmetry"])
			q.Stability, _ = toFloat(pq["stability"])
			frame.PoseQuality = &q
		}

		pose := Pose{
			Keypoints:    parseKeypoints(m["keypoints"]),
			Angles:       parseAngles(m["angles"]),
			Improvements: parseImprovements(m["improvements"]),
		}
		frame.People = []Pose{pose}
		out = append(out, frame)
	}
	return out
}

// parseKeypoints accepts either a name -> point map or a COCO ordered list of points,
// where a point is a {x, y, confidence} document or an [x, y, confidence] array.
func parseKeypoints(v interface{}) map[string]Keypoint {
	kps := map[string]Keypoint{}
	if m := asMap(v); m != nil {
		for name, raw := range m {
			if kp, ok := parsePoint(raw); ok {
				kps[name] = kp
			}
		}
		return kps
	}
	for i, raw := range asSlice(v) {
		if i >= len(KeypointNames) {
			break
		}
		if kp, ok := parsePoint(raw); ok {
			kps[KeypointNames[i]] = kp
		}
	}
	return kps
}

func parsePoint(v interface{}) (Keypoint, bool) {
	if m := asMap(v); m != nil {
		x, okX := toFloat(m["x"])
		y, okY := toFloat(m["y"])
		if !okX || !okY {
			return Keypoint{}, false
		}
		kp := Keypoint{X: x, Y: y}
		if c, ok := toFloat(m["confidence"]); ok {
			kp.Confidence = &c
		}
		return kp, true
	}
	arr := asSlice(v)
	if len(arr) < 2 {
		return Keypoint{}, false
	}
	x, okX := toFloat(arr[0])
	y, okY := toFloat(arr[1])
	if !okX || !okY {
		return Keypoint{}, false
	}
	kp := Keypoint{X: x, Y: y}
	if len(arr) > 2 {
		if c, ok := toFloat(arr[2]); ok {
			kp.Confidence = &c
		}
	}
	return kp, true
}

func parseAngles(v interface{}) []Angle {
	angles := []Angle{}
	for _, raw := range asSlice(v) {
		m := asMap(raw)
		if m == nil {
			continue
		}
		a := Angle{}
		a.Start, _ = m["start"].(string)
		a.Middle, _ = m["middle"].(string)
		a.End, _ = m["end"].(string)
		a.Name, _ = m["name"].(string)
		a.Angle, _ = toFloat(m["angle"])
		angles = append(angles, a)
	}
	return angles
}

func parseImprovements(v interface{}) []Improvement {
	imps := []Improvement{}
	for _, raw := range asSlice(v) {
		m := asMap(raw)
		if m == nil {
			continue
		}
		imp := Improvement{}
		if idx, ok := toFloat(m["angle_index"]); ok {
			imp.AngleIndex = int(idx)
		}
		imp.TargetAngle, _ = toFloat(m["target_angle"])
		imp.Magnitude, _ = toFloat(m["magnitude"])
		imp.Direction, _ = m["direction"].(string)
		switch p := m["priority"].(type) {
		case string:
			imp.Priority = p
		default:
			if f, ok := toFloat(p); ok {
				imp.Priority = formatNumber(f)
			}
		}
		imps = append(imps, imp)
	}
	return imps
}

func asMap(v interface{}) map[string]interface{} {
	switch m := v.(type) {
	case bson.M:
		return m
	case map[string]interface{}:
		return m
	case primitive.D:
		return m.Map()
	}
	return nil
}

func asSlice(v interface{}) []interface{} {
	switch s := v.(type) {
	case primitive.A:
		return s
	case []interface{}:
		return s
	}
	return nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func nonNilKeypoints(m map[string]Keypoint) map[string]Keypoint {
	if m == nil {
		return map[string]Keypoint{}
	}
	return m
}

func nonNilAngles(a []Angle) []Angle {
	if a == nil {
		return []Angle{}
	}
	return a
}

func nonNilImprovements(i []Improvement) []Improvement {
	if i == nil {
		return []Improvement{}
	}
	return i
}
