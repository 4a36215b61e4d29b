package convert

import (
	"encoding/json"

	"github.com/keypointsim/recorder/internal/model"
	"github.com/keypointsim/recorder/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

func poseToTransform(p model.Pose) core.Transform {
	return core.Transform{
		Position: core.Vector3{X: p.X, Y: p.Y, Z: p.Z},
		Rotation: core.Quaternion{X: p.QX, Y: p.QY, Z: p.QZ, W: p.QW},
	}
}

// geometryToBox returns the screen box spanned by a stored bbox geometry.
func geometryToBox(g geom.Geometry) core.BoundingBox2D {
	lo, hi, ok := g.Envelope().MinMaxXYs()
	if !ok {
		return core.BoundingBox2D{}
	}
	return core.BoundingBox2D{
		Min: core.ScreenPoint{X: lo.X, Y: lo.Y},
		Max: core.ScreenPoint{X: hi.X, Y: hi.Y},
	}
}

// FrameToCore converts a GORM Frame back to a core.FrameRecord.
func FrameToCore(f model.Frame) core.FrameRecord {
	var rows []keypointRow
	if len(f.Keypoints) > 0 {
		_ = json.Unmarshal(f.Keypoints, &rows)
	}
	kps := make([]core.Keypoint, len(rows))
	for i, r := range rows {
		kps[i] = core.Keypoint{Index: r.Index, Name: r.Name, Screen: core.ScreenPoint{X: r.X, Y: r.Y}}
	}

	return core.FrameRecord{
		Key:         f.Key,
		SceneIndex:  f.SceneIndex,
		OutputLabel: f.OutputLabel,
		CapturedAt:  f.CapturedAt,
		Screen:      core.ScreenSize{Width: float64(f.ScreenWidth), Height: float64(f.ScreenHeight)},
		Keypoints:   kps,
		Camera:      poseToTransform(f.Camera),
		Target:      poseToTransform(f.Target),
		Box:         geometryToBox(f.BBox),
		Visibility:  f.Visibility,
	}
}
