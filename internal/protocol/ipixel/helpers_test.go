package ipixel

import (
	"bytes"
	"errors"
)

// fakeRasterizer 按 font.MinWidth（或固定宽度）生成可预测的位图
type fakeRasterizer struct {
	width    int // 0 表示使用 font.MinWidth
	rowBytes int // >0 时强制每行字节数，用于制造尺寸错误
	fail     rune
	fonts    []FontSpec
}

var errRasterize = errors.New("glyph not found")

func (f *fakeRasterizer) Rasterize(ch rune, height int, font FontSpec) ([]byte, int, error) {
	f.fonts = append(f.fonts, font)
	if f.fail != 0 && ch == f.fail {
		return nil, 0, errRasterize
	}
	w := f.width
	if w == 0 {
		w = font.MinWidth
	}
	row := (w + 7) / 8
	if f.rowBytes > 0 {
		row = f.rowBytes
	}
	return bytes.Repeat([]byte{byte(ch)}, height*row), w, nil
}
