// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"

	"github.com/keypointsim/recorder/internal/model"
	"github.com/keypointsim/recorder/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

// keypointRow is the JSON shape of one keypoint in the catalog.
type keypointRow struct {
	Index int     `json:"index"`
	Name  string  `json:"name"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

func transformToPose(t core.Transform) model.Pose {
	return model.Pose{
		X:  t.Position.X,
		Y:  t.Position.Y,
		Z:  t.Position.Z,
		QX: t.Rotation.X,
		QY: t.Rotation.Y,
		QZ: t.Rotation.Z,
		QW: t.Rotation.W,
	}
}

// keypointsToJSON converts keypoints to datatypes.JSON for DB storage.
func keypointsToJSON(kps []core.Keypoint) datatypes.JSON {
	if len(kps) == 0 {
		return datatypes.JSON("[]")
	}
	rows := make([]keypointRow, len(kps))
	for i, kp := range kps {
		rows[i] = keypointRow{Index: kp.Index, Name: kp.Name, X: kp.Screen.X, Y: kp.Screen.Y}
	}
	data, _ := json.Marshal(rows)
	return datatypes.JSON(data)
}

// boxToGeometry stores the box as its envelope. A box without area becomes a
// point or line; non-finite corners give the empty geometry.
func boxToGeometry(b core.BoundingBox2D) geom.Geometry {
	env, err := geom.NewEnvelope([]geom.XY{
		{X: b.Min.X, Y: b.Min.Y},
		{X: b.Max.X, Y: b.Max.Y},
	})
	if err != nil {
		return geom.Geometry{}
	}
	return env.AsGeometry()
}

// CoreToFrame converts a captured frame to a GORM Frame. RunID and SceneID
// are stamped by the writer.
func CoreToFrame(r core.FrameRecord) model.Frame {
	return model.Frame{
		SceneIndex:   r.SceneIndex,
		Key:          r.Key,
		OutputLabel:  r.OutputLabel,
		CapturedAt:   r.CapturedAt,
		ScreenWidth:  int(r.Screen.Width),
		ScreenHeight: int(r.Screen.Height),
		Camera:       transformToPose(r.Camera),
		Target:       transformToPose(r.Target),
		Keypoints:    keypointsToJSON(r.Keypoints),
		BBox:         boxToGeometry(r.Box),
		BoxWidth:     r.Box.Width(),
		BoxHeight:    r.Box.Height(),
		Visibility:   r.Visibility,
	}
}

// CoreToScene converts a scene configuration to a GORM Scene.
func CoreToScene(runID string, index int, s core.SceneConfig) model.Scene {
	return model.Scene{
		RunID:          runID,
		Index:          index,
		OutputLabel:    s.OutputLabel,
		LightIntensity: s.LightIntensity,
		TerrainLayer:   s.TerrainLayer,
		Material:       s.Material,
		CaptureQuota:   s.CaptureQuota,
	}
}
