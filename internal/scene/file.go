package scene

import (
	"fmt"
	"os"

	"github.com/keypointsim/recorder/pkg/core"
	"gopkg.in/yaml.v3"
)

type sceneFile struct {
	Scenes []core.SceneConfig `yaml:"scenes"`
}

// rawSceneFile keeps each entry undecoded so it can be laid over the
// defaults.
type rawSceneFile struct {
	Scenes []yaml.Node `yaml:"scenes"`
}

// ReadFile loads a scene list from a YAML document with a top-level
// "scenes" sequence. Keys a scene omits keep their DefaultSceneConfig value.
func ReadFile(path string) ([]core.SceneConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scene file: %w", err)
	}

	var f rawSceneFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing scene file %s: %w", path, err)
	}
	scenes := make([]core.SceneConfig, len(f.Scenes))
	for i := range f.Scenes {
		scenes[i] = core.DefaultSceneConfig()
		if err := f.Scenes[i].Decode(&scenes[i]); err != nil {
			return nil, fmt.Errorf("parsing scene %d in %s: %w", i, path, err)
		}
	}
	if err := Validate(scenes); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return scenes, nil
}

// WriteFile stores scenes as YAML.
func WriteFile(path string, scenes []core.SceneConfig) error {
	data, err := yaml.Marshal(sceneFile{Scenes: scenes})
	if err != nil {
		return fmt.Errorf("encoding scenes: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
