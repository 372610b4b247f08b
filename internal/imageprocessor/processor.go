package imageprocessor

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/draw"
	// webp поддерживается только на чтение: логотипы принимаем в webp,
	// но миниатюры всегда перекодируются в jpeg/png
	_ "golang.org/x/image/webp"
)

// ImageSize - целевые габариты миниатюры (вписывание с сохранением пропорций)
type ImageSize struct {
	Name   string
	Width  int
	Height int
}

// SizeThumbnail - миниатюра логотипа для списков клиентов
var SizeThumbnail = ImageSize{Name: "thumbnail", Width: 150, Height: 150}

// Processor перекодирует и масштабирует изображения брендов
type Processor struct {
	quality int // качество JPEG, 1-100
}

func NewProcessor(quality int) *Processor {
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	return &Processor{quality: quality}
}

// ProcessImage декодирует изображение, вписывает его в заданный размер
// и кодирует в указанный формат ("jpeg"/"png", пусто - формат оригинала)
func (p *Processor) ProcessImage(reader io.Reader, size ImageSize, format string) (io.Reader, error) {
	img, srcFormat, err := image.Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	resized := fitInto(img, size.Width, size.Height)

	if format == "" {
		format = srcFormat
	}

	var buf bytes.Buffer
	switch format {
	case "jpeg", "jpg":
		err = jpeg.Encode(&buf, resized, &jpeg.Options{Quality: p.quality})
	case "png", "webp":
		// webp-оригиналы сохраняем миниатюрой в png
		err = png.Encode(&buf, resized)
	default:
		return nil, fmt.Errorf("unsupported image format: %s", format)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}

	return &buf, nil
}

// fitInto масштабирует изображение с сохранением пропорций
func fitInto(img image.Image, maxWidth, maxHeight int) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	ratio := float64(width) / float64(height)
	newWidth, newHeight := maxWidth, maxHeight
	if float64(maxWidth)/float64(maxHeight) > ratio {
		newWidth = int(float64(maxHeight) * ratio)
	} else {
		newHeight = int(float64(maxWidth) / ratio)
	}
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// IsValidImage проверяет, что данные декодируются как изображение
func IsValidImage(reader io.Reader) bool {
	_, _, err := image.Decode(reader)
	return err == nil
}
