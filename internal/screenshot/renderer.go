// Package screenshot implements the Screenshot Renderer (§4.5): a parallel
// rectangle fetch over the Board Manager followed by an indexed-color PNG
// encode.
package screenshot

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"

	"github.com/quantarax/backend/internal/board"
	"github.com/quantarax/backend/internal/pixel"
)

// MaxQuality is the upper bound on the quality factor q.
const MaxQuality = 8

var canvasPalette = buildPalette()

func buildPalette() color.Palette {
	p := make(color.Palette, len(pixel.Palette))
	for i, rgb := range pixel.Palette {
		p[i] = color.RGBA{R: rgb.R, G: rgb.G, B: rgb.B, A: 0xff}
	}
	return p
}

// Render fetches every chunk in the inclusive rectangle from topLeft to
// bottomRight through b, then rasterises them into an indexed-color PNG at
// quality q (clamped to [1, MaxQuality]). A chunk with no data (never
// written, or unreachable) renders as palette entry 0.
func Render(ctx context.Context, b *board.Board, topLeft, bottomRight pixel.ChunkCoordinates, q int) ([]byte, error) {
	if q < 1 {
		q = 1
	}
	if q > MaxQuality {
		q = MaxQuality
	}

	minX, maxX := topLeft.X, bottomRight.X
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	minY, maxY := bottomRight.Y, topLeft.Y
	if minY > maxY {
		minY, maxY = maxY, minY
	}

	chunks := b.GetScreenshotChunks(ctx, topLeft, bottomRight)

	xChunks := int(maxX-minX) + 1
	yChunks := int(maxY-minY) + 1
	chunkPixels := pixel.ChunkLength * q
	width := xChunks * chunkPixels
	height := yChunks * chunkPixels

	img := image.NewPaletted(image.Rect(0, 0, width, height), canvasPalette)

	// Row 0 of the image is the topmost (largest y) chunk row.
	for chunkRow := 0; chunkRow < yChunks; chunkRow++ {
		y := maxY - int64(chunkRow)
		for chunkCol := 0; chunkCol < xChunks; chunkCol++ {
			x := minX + int64(chunkCol)
			chunk := chunks[pixel.ChunkCoordinates{X: x, Y: y}]
			writeChunkBlock(img, chunk, chunkCol*chunkPixels, chunkRow*chunkPixels, q)
		}
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeChunkBlock(img *image.Paletted, chunk *pixel.Chunk, baseX, baseY, q int) {
	for row := 0; row < pixel.ChunkLength; row++ {
		for col := 0; col < pixel.ChunkLength; col++ {
			var idx pixel.Color
			if chunk != nil {
				if c, err := chunk.At(pixel.Index(col, row)); err == nil {
					idx = c
				}
			}
			for dy := 0; dy < q; dy++ {
				py := baseY + row*q + dy
				for dx := 0; dx < q; dx++ {
					px := baseX + col*q + dx
					img.SetColorIndex(px, py, uint8(idx))
				}
			}
		}
	}
}
