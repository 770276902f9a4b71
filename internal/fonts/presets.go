// Package fonts 管理字体预设，并基于 truetype 提供文本宽度与字体度量
package fonts

import "fmt"

// Face 一个字重的字体：注册名与文件路径
type Face struct {
	Name string `json:"name"`
	File string `json:"file"`
}

// Preset 一套字体，每个任务选定一次
type Preset struct {
	Name    string `json:"name"`
	Regular Face   `json:"regular"`
	Bold    Face   `json:"bold"`
	Italic  Face   `json:"italic"`
}

func preset(name, prefix string) Preset {
	return Preset{
		Name:    name,
		Regular: Face{Name: prefix + "-Regular", File: "fonts/" + prefix + "-Regular.ttf"},
		Bold:    Face{Name: prefix + "-Bold", File: "fonts/" + prefix + "-Bold.ttf"},
		Italic:  Face{Name: prefix + "-Italic", File: "fonts/" + prefix + "-Italic.ttf"},
	}
}

var presets = []Preset{
	preset("Noto Sans", "NotoSans"),
	preset("Roboto", "Roboto"),
	preset("Source Serif 4", "SourceSerif4"),
	preset("Lora", "Lora"),
	preset("Inter", "Inter_24pt"),
	preset("Montserrat", "Montserrat"),
	preset("OpenSans", "OpenSans"),
}

// DefaultPreset 默认字体
const DefaultPreset = "Noto Sans"

// Lookup 按名称查找预设
func Lookup(name string) (Preset, error) {
	for _, p := range presets {
		if p.Name == name {
			return p, nil
		}
	}
	return Preset{}, fmt.Errorf("Font not found: %s", name)
}

// Names 预设名称，保持定义顺序
func Names() []string {
	out := make([]string, len(presets))
	for i, p := range presets {
		out[i] = p.Name
	}
	return out
}
