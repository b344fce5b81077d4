// Package imageutil provides the small pixel-level helpers the image reader
// uses to bring decoded images to a fixed size.
package imageutil

import (
	"image"
)

// Resize scales an image to the given width and height using nearest
// neighbor sampling.
func Resize(img image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	srcBounds := img.Bounds()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			srcX := srcBounds.Min.X + x*srcBounds.Dx()/width
			srcY := srcBounds.Min.Y + y*srcBounds.Dy()/height
			dst.Set(x, y, img.At(srcX, srcY))
		}
	}
	return dst
}

// CenterCrop cuts a width x height window out of the middle of the image.
func CenterCrop(img image.Image, width, height int) image.Image {
	bounds := img.Bounds()
	x0 := bounds.Min.X + (bounds.Dx()-width)/2
	y0 := bounds.Min.Y + (bounds.Dy()-height)/2
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dst.Set(x, y, img.At(x0+x, y0+y))
		}
	}
	return dst
}

// Fit scales the image up or down until it covers width x height, keeping
// the aspect ratio, then center-crops the overhang.
func Fit(img image.Image, width, height int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == width && h == height {
		return img
	}
	var newW, newH int
	if w*height < h*width {
		newW = width
		newH = (h*width + w - 1) / w
	} else {
		newH = height
		newW = (w*height + h - 1) / h
	}
	return CenterCrop(Resize(img, newW, newH), width, height)
}

// RGB8 flattens the image into rows of interleaved 8-bit RGB values.
func RGB8(img image.Image) []uint8 {
	bounds := img.Bounds()
	out := make([]uint8, bounds.Dx()*bounds.Dy()*3)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			out[i] = uint8(r >> 8)
			out[i+1] = uint8(g >> 8)
			out[i+2] = uint8(b >> 8)
			i += 3
		}
	}
	return out
}
