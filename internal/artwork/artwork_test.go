package artwork

import (
	"image"
	"image/color"
	"testing"
)

func solidImage(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestDiffHashStableForIdenticalImages(t *testing.T) {
	a := solidImage(64, 64, color.RGBA{200, 50, 50, 255})
	b := solidImage(64, 64, color.RGBA{200, 50, 50, 255})
	if diffHash(a) != diffHash(b) {
		t.Fatal("identical images produced different hashes")
	}
}

func TestDeduplicatorFindsNearMatch(t *testing.T) {
	d := NewDeduplicator(4)
	h1 := uint64(0b1010101010101010)
	d.Register(h1)

	near, match := d.NearestWithin(h1)
	if !near || match != h1 {
		t.Fatal("expected the identical hash to match")
	}

	far := ^h1 // every bit flipped: far outside any small distance
	if near, _ := d.NearestWithin(far); near {
		t.Fatal("expected a maximally different hash not to match")
	}
}

func TestHammingDistance(t *testing.T) {
	if d := hammingDistance(0b1111, 0b1111); d != 0 {
		t.Fatalf("hammingDistance of equal values = %d, want 0", d)
	}
	if d := hammingDistance(0b0000, 0b1111); d != 4 {
		t.Fatalf("hammingDistance = %d, want 4", d)
	}
}
