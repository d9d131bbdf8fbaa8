package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	// 注册解码器
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/taoyao-code/ipixel-server/internal/protocol/ipixel"
)

// DefaultQuality 图像帧 JPEG 质量
const DefaultQuality = 90

// SquareJPEG 将任意格式的图片等比缩放并居中到 size × size 的黑底画布，编码为 JPEG
// 结果可直接用作 ipixel.ImageFrame 的数据。
func SquareJPEG(data []byte, size, quality int) ([]byte, error) {
	if err := ipixel.ValidateMembership(size, ipixel.ImageFrameSizes(), "image size"); err != nil {
		return nil, err
	}
	if quality <= 0 {
		quality = DefaultQuality
	}
	if err := ipixel.ValidateRange(quality, 1, 100, "jpeg quality"); err != nil {
		return nil, err
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode image: %v", ipixel.ErrInvalidInput, err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, fitRect(src.Bounds(), size), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode %s as jpeg: %w", format, err)
	}
	return buf.Bytes(), nil
}

// fitRect 保持宽高比缩放到 size 以内并居中
func fitRect(b image.Rectangle, size int) image.Rectangle {
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return image.Rect(0, 0, size, size)
	}
	if w >= h {
		nh := max(1, h*size/w)
		top := (size - nh) / 2
		return image.Rect(0, top, size, top+nh)
	}
	nw := max(1, w*size/h)
	left := (size - nw) / 2
	return image.Rect(left, 0, left+nw, size)
}
