package model

import (
	"database/sql"
	"time"

	"github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DatabaseModels lists every table the catalog migrates.
var DatabaseModels = []any{
	&Run{},
	&Scene{},
	&Frame{},
}

// Run is one recorder invocation.
type Run struct {
	ID         string       `json:"id" gorm:"primaryKey;size:36"`
	StartedAt  time.Time    `json:"startedAt" gorm:"index:idx_run_started"`
	EndedAt    sql.NullTime `json:"endedAt"`
	OutputDir  string       `json:"outputDir" gorm:"size:512"`
	SceneCount int          `json:"sceneCount"`
	Frames     int          `json:"frames"`
	Scenes     []Scene      `json:"-"`
}

func (*Run) TableName() string {
	return "runs"
}

// Scene is one configured scene as it was applied during a run.
type Scene struct {
	gorm.Model
	RunID          string       `json:"runId" gorm:"size:36;index:idx_scene_run"`
	Index          int          `json:"index"`
	OutputLabel    string       `json:"outputLabel" gorm:"size:200"`
	LightIntensity float64      `json:"lightIntensity"`
	TerrainLayer   int          `json:"terrainLayer"`
	Material       string       `json:"material" gorm:"size:200"`
	CaptureQuota   int          `json:"captureQuota"`
	Captured       int          `json:"captured"`
	EndedAt        sql.NullTime `json:"endedAt"`
	Frames         []Frame      `json:"-"`
}

func (*Scene) TableName() string {
	return "scenes"
}

// Pose is a position plus rotation quaternion, stored inline.
type Pose struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Z  float64 `json:"z"`
	QX float64 `json:"qx"`
	QY float64 `json:"qy"`
	QZ float64 `json:"qz"`
	QW float64 `json:"qw"`
}

// Frame is one captured annotation. BBox holds the on-screen box as a
// polygon in screen pixels (origin bottom-left).
type Frame struct {
	gorm.Model
	RunID        string         `json:"runId" gorm:"size:36;index:idx_frame_run"`
	SceneID      uint           `json:"sceneId" gorm:"index:idx_frame_scene"`
	SceneIndex   int            `json:"sceneIndex"`
	Key          string         `json:"key" gorm:"size:64;uniqueIndex:idx_frame_key"`
	OutputLabel  string         `json:"outputLabel" gorm:"size:200"`
	CapturedAt   time.Time      `json:"capturedAt" gorm:"index:idx_frame_captured"`
	ScreenWidth  int            `json:"screenWidth"`
	ScreenHeight int            `json:"screenHeight"`
	Camera       Pose           `json:"camera" gorm:"embedded;embeddedPrefix:camera_"`
	Target       Pose           `json:"target" gorm:"embedded;embeddedPrefix:target_"`
	Keypoints    datatypes.JSON `json:"keypoints"`
	BBox         geom.Geometry  `json:"-"`
	BoxWidth     float64        `json:"boxWidth"`
	BoxHeight    float64        `json:"boxHeight"`
	Visibility   float64        `json:"visibility"`
}

func (*Frame) TableName() string {
	return "frames"
}
