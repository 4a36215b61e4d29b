package dataset

import "github.com/keypointsim/recorder/pkg/core"

// Both views use a top-left image origin. Records keep the engine's
// bottom-left origin, so y is flipped here and only here.

// Vec2 is a JSON point.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vec3 is a JSON position.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quat is a JSON rotation.
type Quat struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// ObjectData is a serialized transform.
type ObjectData struct {
	Rotation Quat `json:"rotation"`
	Position Vec3 `json:"position"`
}

// DescriptiveKeypoint is a named keypoint.
type DescriptiveKeypoint struct {
	Pos  Vec2   `json:"pos"`
	Name string `json:"name"`
}

// DescriptiveBox is a box given by its corners.
type DescriptiveBox struct {
	TopLeft     Vec2 `json:"topLeft"`
	BottomRight Vec2 `json:"bottomRight"`
}

// DescriptiveFrame is one entry of a per-scene DescriptiveFrameData.json.
type DescriptiveFrame struct {
	Keypoints  []DescriptiveKeypoint `json:"keypoints"`
	CameraData ObjectData            `json:"cameraData"`
	TargetData ObjectData            `json:"fuelCapData"`
	BBox       DescriptiveBox        `json:"bbox"`
}

// FlatFrame is one entry of the run-wide AllFrameData.json. Keypoints are
// [x, y, index] and the box is [x0, y0, x1, y1] with (x0, y0) the top-left.
type FlatFrame struct {
	Keypoints  [][3]float64 `json:"keypoints"`
	CameraData ObjectData   `json:"cameraData"`
	TargetData ObjectData   `json:"fuelCapData"`
	BBox       [4]float64   `json:"bbox"`
	ImgDir     string       `json:"img_dir"`
}

func objectData(t core.Transform) ObjectData {
	return ObjectData{
		Rotation: Quat{X: t.Rotation.X, Y: t.Rotation.Y, Z: t.Rotation.Z, W: t.Rotation.W},
		Position: Vec3{X: t.Position.X, Y: t.Position.Y, Z: t.Position.Z},
	}
}

func flipY(height, y float64) float64 {
	return height - y
}

// Descriptive renders r in the named-keypoint layout.
func Descriptive(r *core.FrameRecord) DescriptiveFrame {
	h := r.Screen.Height
	keypoints := make([]DescriptiveKeypoint, len(r.Keypoints))
	for i, kp := range r.Keypoints {
		keypoints[i] = DescriptiveKeypoint{
			Pos:  Vec2{X: kp.Screen.X, Y: flipY(h, kp.Screen.Y)},
			Name: kp.Name,
		}
	}

	return DescriptiveFrame{
		Keypoints:  keypoints,
		CameraData: objectData(r.Camera),
		TargetData: objectData(r.Target),
		BBox: DescriptiveBox{
			TopLeft:     Vec2{X: r.Box.Min.X, Y: flipY(h, r.Box.Max.Y)},
			BottomRight: Vec2{X: r.Box.Max.X, Y: flipY(h, r.Box.Min.Y)},
		},
	}
}

// Flat renders r in the numeric training layout.
func Flat(r *core.FrameRecord) FlatFrame {
	h := r.Screen.Height
	keypoints := make([][3]float64, len(r.Keypoints))
	for i, kp := range r.Keypoints {
		keypoints[i] = [3]float64{kp.Screen.X, flipY(h, kp.Screen.Y), float64(kp.Index)}
	}

	return FlatFrame{
		Keypoints:  keypoints,
		CameraData: objectData(r.Camera),
		TargetData: objectData(r.Target),
		BBox: [4]float64{
			r.Box.Min.X, flipY(h, r.Box.Max.Y),
			r.Box.Max.X, flipY(h, r.Box.Min.Y),
		},
		ImgDir: r.OutputLabel,
	}
}
