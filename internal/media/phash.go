package media

import (
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"os"

	"video-worker/internal/gateway"
)

// hashWidth and hashHeight size the grayscale grid the difference hash is
// computed over: 9x8 pixels yields 8x8=64 horizontal gradient bits.
const (
	hashWidth  = 9
	hashHeight = 8
)

// DHasher implements gateway.PerceptualHasher with a 64-bit difference hash:
// downsample to a small grayscale grid, then set bit i when pixel i is
// brighter than its right neighbor. No off-the-shelf perceptual-hash
// package exists anywhere in the example corpus, so this is hand-rolled
// core domain logic rather than an ambient concern.
type DHasher struct{}

var _ gateway.PerceptualHasher = (*DHasher)(nil)

func (DHasher) Hash(ctx context.Context, imagePath string) (string, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	small := downsampleGray(img, hashWidth, hashHeight)

	var hash uint64
	bit := uint(0)
	for y := 0; y < hashHeight; y++ {
		for x := 0; x < hashWidth-1; x++ {
			left := small.GrayAt(x, y).Y
			right := small.GrayAt(x+1, y).Y
			if left > right {
				hash |= 1 << bit
			}
			bit++
		}
	}

	return fmt.Sprintf("%016x", hash), nil
}

// downsampleGray nearest-neighbor samples img down to a w x h grayscale
// grid. Good enough for a difference hash, which only cares about coarse
// brightness gradients, not image fidelity.
func downsampleGray(img image.Image, w, h int) *image.Gray {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		sy := bounds.Min.Y + y*srcH/h
		for x := 0; x < w; x++ {
			sx := bounds.Min.X + x*srcW/w
			gray := color.GrayModel.Convert(img.At(sx, sy)).(color.Gray)
			out.SetGray(x, y, gray)
		}
	}
	return out
}

// Hamming returns the number of differing bits between two hex-encoded
// 64-bit hashes produced by Hash. Malformed input is treated as maximally
// different so a bad hash never wins a dedup comparison by accident.
func Hamming(a, b string) int {
	ha, erra := parseHash(a)
	hb, errb := parseHash(b)
	if erra != nil || errb != nil {
		return 64
	}
	return popcount(ha ^ hb)
}

func parseHash(s string) (uint64, error) {
	var v uint64
	_, err := fmt.Sscanf(s, "%016x", &v)
	return v, err
}

func popcount(v uint64) int {
	count := 0
	for v != 0 {
		v &= v - 1
		count++
	}
	return count
}
