package render

import (
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/taoyao-code/ipixel-server/internal/protocol/ipixel"
)

const (
	// DefaultFont 内置 7x13 点阵字体
	DefaultFont = "default"
	// MonoFont 内置 Go Mono 矢量字体
	MonoFont = "gomono"

	// alphaThreshold 覆盖度达到该值的像素视为点亮
	alphaThreshold = 0x80
)

// ErrGlyphMissing 字体中没有该字符
var ErrGlyphMissing = fmt.Errorf("%w: glyph missing", ipixel.ErrResourceUnavailable)

// Rasterizer 基于 x/image 的字形光栅化器，实现 ipixel.Rasterizer
// 字体名为 default、gomono，或 FontDir 下的 .ttf/.otf 文件（可省略扩展名，也可直接给出路径）。
type Rasterizer struct {
	fontDir string
	logger  *zap.Logger

	mu    sync.Mutex
	fonts map[string]*opentype.Font
}

// Option Rasterizer 可选项
type Option func(*Rasterizer)

// WithFontDir 设置外部字体目录
func WithFontDir(dir string) Option {
	return func(r *Rasterizer) { r.fontDir = dir }
}

// WithLogger 注入日志
func WithLogger(logger *zap.Logger) Option {
	return func(r *Rasterizer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New 创建光栅化器
func New(opts ...Option) *Rasterizer {
	r := &Rasterizer{
		logger: zap.NewNop(),
		fonts:  make(map[string]*opentype.Font),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ ipixel.Rasterizer = (*Rasterizer)(nil)

// Rasterize 将字符绘制到 width × height 画布并按行打包
// 宽度取 [MinWidth, MaxWidth] 中按 Step 递增、能容纳字形的最小值；
// 每行 ceil(width/8) 字节，MSB 在左，置位表示未点亮。
func (r *Rasterizer) Rasterize(ch rune, height int, spec ipixel.FontSpec) ([]byte, int, error) {
	if height <= 0 {
		return nil, 0, fmt.Errorf("%w: height %d", ipixel.ErrOutOfRange, height)
	}
	size := spec.Size
	if size <= 0 {
		size = height
	}

	face, err := r.face(spec.Font, size)
	if err != nil {
		return nil, 0, err
	}
	defer face.Close()

	src, err := drawGlyph(face, ch)
	if err != nil {
		return nil, 0, err
	}

	// 按字号缩放到目标行高
	scale := float64(size) / float64(src.Bounds().Dy())
	scaledW := int(math.Ceil(float64(src.Bounds().Dx()) * scale))
	width := chooseWidth(scaledW+spec.OffsetX, spec.MinWidth, spec.MaxWidth, spec.Step)

	dst := image.NewAlpha(image.Rect(0, 0, width, height))
	top := (height-size)/2 + spec.OffsetY
	target := image.Rect(spec.OffsetX, top, spec.OffsetX+scaledW, top+size)
	draw.NearestNeighbor.Scale(dst, target, src, src.Bounds(), draw.Over, nil)

	r.logger.Debug("glyph rasterized",
		zap.String("char", string(ch)),
		zap.String("font", spec.Font),
		zap.Int("size", size),
		zap.Int("width", width),
		zap.Int("height", height))
	return pack(dst), width, nil
}

// face 返回指定字号的字体；矢量字体每次新建 Face，调用方负责 Close
func (r *Rasterizer) face(name string, size int) (font.Face, error) {
	if name == "" || name == DefaultFont {
		return basicfont.Face7x13, nil
	}
	f, err := r.loadFont(name)
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

func (r *Rasterizer) loadFont(name string) (*opentype.Font, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.fonts[name]; ok {
		return f, nil
	}

	var data []byte
	if name == MonoFont {
		data = gomono.TTF
	} else {
		path, err := r.resolveFontPath(name)
		if err != nil {
			return nil, err
		}
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("%w: read font %s: %v", ipixel.ErrResourceUnavailable, path, err)
		}
	}

	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parse font %s: %v", ipixel.ErrResourceUnavailable, name, err)
	}
	r.fonts[name] = f
	r.logger.Info("font loaded", zap.String("font", name))
	return f, nil
}

func (r *Rasterizer) resolveFontPath(name string) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".ttf" || ext == ".otf" {
		if filepath.IsAbs(name) || r.fontDir == "" {
			return name, nil
		}
		return filepath.Join(r.fontDir, name), nil
	}
	for _, ext := range []string{".ttf", ".otf"} {
		path := filepath.Join(r.fontDir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: font %q not found in %q", ipixel.ErrResourceUnavailable, name, r.fontDir)
}

// drawGlyph 以字体原生尺寸绘制单个字符，画布高度为 ascent + descent
func drawGlyph(face font.Face, ch rune) (*image.Alpha, error) {
	advance, ok := face.GlyphAdvance(ch)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrGlyphMissing, ch)
	}
	m := face.Metrics()
	w := advance.Ceil()
	h := (m.Ascent + m.Descent).Ceil()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %q has empty advance", ErrGlyphMissing, ch)
	}

	img := image.NewAlpha(image.Rect(0, 0, w, h))
	d := font.Drawer{
		Dst:  img,
		Src:  image.Opaque,
		Face: face,
		Dot:  fixed.Point26_6{X: 0, Y: m.Ascent},
	}
	d.DrawString(string(ch))
	return img, nil
}

// chooseWidth 在 [min, max] 中按 step 选取不小于 want 的最小宽度，超出时取 max
func chooseWidth(want, min, max, step int) int {
	if min <= 0 {
		min = 1
	}
	if max < min {
		max = min
	}
	if step <= 0 {
		step = 1
	}
	w := min
	for w < want && w+step <= max {
		w += step
	}
	return w
}

// pack 逐行打包为 1bpp
func pack(img *image.Alpha) []byte {
	b := img.Bounds()
	stride := (b.Dx() + 7) / 8
	out := make([]byte, stride*b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if img.AlphaAt(b.Min.X+x, b.Min.Y+y).A < alphaThreshold {
				out[y*stride+x>>3] |= 0x80 >> (x & 7)
			}
		}
	}
	return out
}

// Unpack 将打包位图还原为点亮像素矩阵，调试与测试使用
func Unpack(bitmap []byte, width, height int) ([][]bool, error) {
	stride := (width + 7) / 8
	if len(bitmap) != stride*height {
		return nil, fmt.Errorf("%w: %dx%d needs %d bytes, got %d",
			ipixel.ErrBitmapSizeMismatch, height, width, stride*height, len(bitmap))
	}
	rows := make([][]bool, height)
	for y := range rows {
		rows[y] = make([]bool, width)
		for x := 0; x < width; x++ {
			rows[y][x] = bitmap[y*stride+x>>3]&(0x80>>(x&7)) == 0
		}
	}
	return rows, nil
}
