package render

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/taoyao-code/ipixel-server/internal/protocol/ipixel"
)

// profileFile 宽度配置文件结构
//
//	profiles:
//	  0:
//	    16: {min: 8, max: 16, step: 8}
type profileFile struct {
	Merge    bool                 `yaml:"merge"`
	Profiles ipixel.WidthProfiles `yaml:"profiles"`
}

// LoadWidthProfiles 从 YAML 文件加载字形宽度配置
// merge 为 true 时在默认配置之上覆盖，否则完全替换。
func LoadWidthProfiles(path string) (ipixel.WidthProfiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read width profiles: %w", err)
	}
	return ParseWidthProfiles(data)
}

// ParseWidthProfiles 解析 YAML 宽度配置
func ParseWidthProfiles(data []byte) (ipixel.WidthProfiles, error) {
	var f profileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parse width profiles: %v", ipixel.ErrInvalidInput, err)
	}
	for ledType, byHeight := range f.Profiles {
		for height, wr := range byHeight {
			if err := validateWidthRange(wr); err != nil {
				return nil, fmt.Errorf("led type %d height %d: %w", ledType, height, err)
			}
		}
	}
	if !f.Merge {
		return f.Profiles, nil
	}
	merged := ipixel.DefaultWidthProfiles()
	for ledType, byHeight := range f.Profiles {
		if merged[ledType] == nil {
			merged[ledType] = make(map[int]ipixel.WidthRange)
		}
		for height, wr := range byHeight {
			merged[ledType][height] = wr
		}
	}
	return merged, nil
}

func validateWidthRange(wr ipixel.WidthRange) error {
	if err := ipixel.ValidateRange(wr.Min, 1, 0xFF, "min width"); err != nil {
		return err
	}
	if err := ipixel.ValidateRange(wr.Max, wr.Min, 0xFF, "max width"); err != nil {
		return err
	}
	return ipixel.ValidateRange(wr.Step, 1, 0xFF, "width step")
}
