package ipixel

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendText_Layout(t *testing.T) {
	raster := &fakeRasterizer{}
	enc := NewEncoder(raster)

	opts := DefaultTextOptions("Hi")
	opts.Speed = 80
	cmd, err := enc.SendText(opts)
	require.NoError(t, err)

	const height = 16
	charCost := 6 + 2*height
	// header(9) + crc(4) + slot(2) + count(1) + props(13) + glyphs
	wantLen := 9 + 4 + 2 + 1 + 13 + 2*charCost
	require.Len(t, cmd, wantLen)

	// 两个长度字段
	assert.Equal(t, uint16(0x1D+2*charCost), binary.LittleEndian.Uint16(cmd[0:2]))
	assert.Equal(t, uint16(len(cmd)), binary.LittleEndian.Uint16(cmd[0:2]))
	assert.Equal(t, []byte{0x00, 0x01, 0x00}, []byte(cmd[2:5]))
	assert.Equal(t, uint16(0x0E+2*charCost), binary.LittleEndian.Uint16(cmd[5:7]))
	assert.Equal(t, uint16(len(cmd)-15), binary.LittleEndian.Uint16(cmd[5:7]))
	assert.Equal(t, []byte{0x00, 0x00}, []byte(cmd[7:9]))

	// 校验和覆盖 count + props + glyphs
	assert.Equal(t, ChecksumBinary(cmd[15:]), binary.LittleEndian.Uint32(cmd[9:13]))
	wantCRC, err := ChecksumHex(cmd[15:].Hex())
	require.NoError(t, err)
	assert.Equal(t, wantCRC, cmd[9:13].Hex())

	// 槽位（大端两字节）与字符数
	assert.Equal(t, []byte{0x00, 0x01}, []byte(cmd[13:15]))
	assert.Equal(t, byte(2), cmd[15])

	// 属性块
	assert.Equal(t, mustHex(t, "000101"+"00"+"50"+"00"+"ffffff00000000"), []byte(cmd[16:29]))

	// 第一个字形: 0x80 + color + width + height + bitmap
	glyph := cmd[29 : 29+charCost]
	assert.Equal(t, byte(0x80), glyph[0])
	assert.Equal(t, []byte{0xff, 0xff, 0xff}, []byte(glyph[1:4]))
	assert.Equal(t, byte(9), glyph[4])
	assert.Equal(t, byte(height), glyph[5])
	assert.Equal(t, TransformGlyph(bytes.Repeat([]byte{'H'}, 2*height)), []byte(glyph[6:]))

	// 默认字号等于矩阵高度，宽度范围 9-16
	require.Len(t, raster.fonts, 2)
	assert.Equal(t, height, raster.fonts[0].Size)
	assert.Equal(t, 9, raster.fonts[0].MinWidth)
	assert.Equal(t, 16, raster.fonts[0].MaxWidth)
}

func TestSendText_Deterministic(t *testing.T) {
	enc := NewEncoder(&fakeRasterizer{})
	a, err := enc.SendText(DefaultTextOptions("Hi"))
	require.NoError(t, err)
	b, err := enc.SendText(DefaultTextOptions("Hi"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSendText_MatrixHeight32(t *testing.T) {
	enc := NewEncoder(&fakeRasterizer{})
	opts := DefaultTextOptions("abc")
	opts.MatrixHeight = 32
	opts.FontSize = 28
	opts.SaveSlot = 10
	opts.Color = "0f0"

	cmd, err := enc.SendText(opts)
	require.NoError(t, err)
	assert.Equal(t, uint16(len(cmd)), binary.LittleEndian.Uint16(cmd[0:2]))
	assert.Equal(t, uint16(len(cmd)-15), binary.LittleEndian.Uint16(cmd[5:7]))
	assert.Equal(t, []byte{0x00, 0x0a}, []byte(cmd[13:15]))
	assert.Equal(t, []byte{0x00, 0xff, 0x00}, []byte(cmd[30:33]))
}

func TestSendText_UnsupportedAnimation(t *testing.T) {
	enc := NewEncoder(&fakeRasterizer{})
	for _, anim := range []int{3, 4} {
		opts := DefaultTextOptions("Hi")
		opts.Animation = anim
		_, err := enc.SendText(opts)
		assert.ErrorIs(t, err, ErrUnsupportedAnimation)

		// 其它参数非法时仍然优先报告动画错误
		opts.Speed = 1000
		opts.Text = ""
		_, err = enc.SendText(opts)
		assert.ErrorIs(t, err, ErrUnsupportedAnimation)
	}
}

func TestSendText_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TextOptions)
		want   error
	}{
		{"彩虹模式越界", func(o *TextOptions) { o.RainbowMode = 10 }, ErrOutOfRange},
		{"动画越界", func(o *TextOptions) { o.Animation = 8 }, ErrOutOfRange},
		{"槽位 0", func(o *TextOptions) { o.SaveSlot = 0 }, ErrOutOfRange},
		{"槽位 11", func(o *TextOptions) { o.SaveSlot = 11 }, ErrOutOfRange},
		{"速度越界", func(o *TextOptions) { o.Speed = 101 }, ErrOutOfRange},
		{"空文本", func(o *TextOptions) { o.Text = "" }, ErrOutOfRange},
		{"文本过长", func(o *TextOptions) { o.Text = string(bytes.Repeat([]byte{'a'}, 101)) }, ErrOutOfRange},
		{"矩阵高度越界", func(o *TextOptions) { o.MatrixHeight = 129 }, ErrOutOfRange},
		{"颜色非法", func(o *TextOptions) { o.Color = "xyz" }, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raster := &fakeRasterizer{}
			opts := DefaultTextOptions("Hi")
			tt.mutate(&opts)
			_, err := NewEncoder(raster).SendText(opts)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, raster.fonts, "validation must happen before rendering")
		})
	}
}

func TestSendText_BitmapSizeMismatch(t *testing.T) {
	// 宽度 8 只产生每行 1 字节，不满足 2 × 高度
	enc := NewEncoder(&fakeRasterizer{width: 8})
	_, err := enc.SendText(DefaultTextOptions("Hi"))
	assert.ErrorIs(t, err, ErrBitmapSizeMismatch)
}

func TestSendText_RasterizerError(t *testing.T) {
	enc := NewEncoder(&fakeRasterizer{fail: 'i'})
	_, err := enc.SendText(DefaultTextOptions("Hi"))
	assert.ErrorIs(t, err, errRasterize)
}
