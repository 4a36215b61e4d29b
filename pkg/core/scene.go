// pkg/core/scene.go
package core

// EulerAngles is a rotation expressed in degrees.
type EulerAngles struct {
	X float64 `json:"x" yaml:"x" mapstructure:"x"`
	Y float64 `json:"y" yaml:"y" mapstructure:"y"`
	Z float64 `json:"z" yaml:"z" mapstructure:"z"`
}

// Quaternion converts the angles to a rotation.
func (e EulerAngles) Quaternion() Quaternion {
	return FromEuler(e.X, e.Y, e.Z)
}

// SceneConfig describes one scene of a capture run.
type SceneConfig struct {
	LightIntensity    float64     `json:"lightIntensity" yaml:"lightIntensity" mapstructure:"lightIntensity"`
	TerrainLayer      int         `json:"terrainLayer" yaml:"terrainLayer" mapstructure:"terrainLayer"`
	Material          string      `json:"material" yaml:"material" mapstructure:"material"`
	CaptureQuota      int         `json:"captureQuota" yaml:"captureQuota" mapstructure:"captureQuota"`
	OutputLabel       string      `json:"outputLabel" yaml:"outputLabel" mapstructure:"outputLabel"`
	RandomizeRotation bool        `json:"randomizeRotation" yaml:"randomizeRotation" mapstructure:"randomizeRotation"`
	Rotation          EulerAngles `json:"rotation" yaml:"rotation" mapstructure:"rotation"`
	RandomizeDistance bool        `json:"randomizeDistance" yaml:"randomizeDistance" mapstructure:"randomizeDistance"`
	Distance          float64     `json:"distance" yaml:"distance" mapstructure:"distance"`
}

// DefaultSceneConfig is the starting point every configured scene is decoded
// over: target rotation and recenter distance are randomized unless a scene
// switches them off.
func DefaultSceneConfig() SceneConfig {
	return SceneConfig{RandomizeRotation: true, RandomizeDistance: true}
}

// AlphaMap is a dense per-texel weight array over the terrain's texture
// layers. Weights are stored row-major with the layer index varying fastest.
type AlphaMap struct {
	Width   int
	Height  int
	Layers  int
	Weights []float32
}

// At returns the weight of layer at texel (x, y).
func (a *AlphaMap) At(x, y, layer int) float32 {
	return a.Weights[(y*a.Width+x)*a.Layers+layer]
}
