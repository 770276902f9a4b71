package fonts

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"pdf-layout-translator/internal/logger"
)

// Font 已解析的 TrueType 字体。度量以字号 1pt 为单位归一化后按字号线性缩放
type Font struct {
	Name string
	Path string

	data []byte
	ttf  *truetype.Font
	upem float64

	ascender  float64
	descender float64

	mu   sync.Mutex
	unit font.Face
}

// Parse 从字节解析字体
func Parse(name string, data []byte) (*Font, error) {
	ttf, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", name, err)
	}
	upem := float64(ttf.FUnitsPerEm())
	if upem <= 0 {
		return nil, fmt.Errorf("font %s: invalid units per em", name)
	}
	// 以 upem 为字号、72dpi 创建 face，1px 恰为 1 个字体单位
	unit := truetype.NewFace(ttf, &truetype.Options{Size: upem, DPI: 72, Hinting: font.HintingNone})
	m := unit.Metrics()

	return &Font{
		Name:      name,
		data:      data,
		ttf:       ttf,
		upem:      upem,
		ascender:  fixedToFloat(m.Ascent) / upem,
		descender: -fixedToFloat(m.Descent) / upem,
		unit:      unit,
	}, nil
}

// LoadFile 从文件加载字体
func LoadFile(name, path string) (*Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font %s: %w", path, err)
	}
	f, err := Parse(name, data)
	if err != nil {
		return nil, err
	}
	f.Path = path
	return f, nil
}

func fixedToFloat(v fixed.Int26_6) float64 { return float64(v) / 64 }

// TextLength 文本在给定字号下的宽度（pt）
func (f *Font) TextLength(s string, size float64) float64 {
	if s == "" {
		return 0
	}
	f.mu.Lock()
	adv := font.MeasureString(f.unit, s)
	f.mu.Unlock()
	return fixedToFloat(adv) / f.upem * size
}

// Ascender 上升高度（相对字号 1），正数
func (f *Font) Ascender() float64 { return f.ascender }

// Descender 下降高度（相对字号 1），负数
func (f *Font) Descender() float64 { return f.descender }

// Data 原始字体字节，注册到 PDF 画布时使用
func (f *Font) Data() []byte { return f.data }

// Face 给定字号的 font.Face，供绘图使用
func (f *Font) Face(size float64) font.Face {
	return truetype.NewFace(f.ttf, &truetype.Options{Size: size, DPI: 72})
}

// Set 一个预设解析后的常规与粗体字体
type Set struct {
	Preset  Preset
	Regular *Font
	Bold    *Font
}

// ForHeading 标题使用粗体
func (s *Set) ForHeading(heading bool) *Font {
	if heading {
		return s.Bold
	}
	return s.Regular
}

// Registry 按预设缓存已解析的字体，多个任务共享
type Registry struct {
	dir  string
	mu   sync.Mutex
	sets map[string]*Set
}

// NewRegistry dir 为字体文件目录；预设里的路径只取文件名部分
func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir, sets: make(map[string]*Set)}
}

// Load 加载预设的常规与粗体字体
func (r *Registry) Load(p Preset) (*Set, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sets[p.Name]; ok {
		return s, nil
	}
	regular, err := LoadFile(p.Regular.Name, r.path(p.Regular))
	if err != nil {
		return nil, err
	}
	bold, err := LoadFile(p.Bold.Name, r.path(p.Bold))
	if err != nil {
		return nil, err
	}
	s := &Set{Preset: p, Regular: regular, Bold: bold}
	r.sets[p.Name] = s
	logger.Debug("font preset loaded", logger.String("preset", p.Name), logger.String("dir", r.dir))
	return s, nil
}

func (r *Registry) path(f Face) string {
	return filepath.Join(r.dir, filepath.Base(f.File))
}
