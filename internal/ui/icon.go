package ui

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"github.com/inboxpilot/voicepilot/internal/voice"
)

// IconState represents the current state for icon coloring
type IconState string

const (
	IconStateOffline    IconState = "offline"    // Gray - Backend not available
	IconStateIdle       IconState = "idle"       // White - ready
	IconStateRecording  IconState = "recording"  // Red - Listening
	IconStateProcessing IconState = "processing" // Blue - Processing
	IconStateSpeaking   IconState = "speaking"   // Green - Speaking
	IconStateError      IconState = "error"      // Orange - microphone failure
)

// iconFor maps a controller status to the tray icon
func iconFor(st voice.Status, backendOnline bool) IconState {
	switch st.State {
	case voice.StateListening:
		return IconStateRecording
	case voice.StateProcessing:
		return IconStateProcessing
	case voice.StateSpeaking:
		return IconStateSpeaking
	case voice.StateError:
		return IconStateError
	}
	if !backendOnline {
		return IconStateOffline
	}
	return IconStateIdle
}

func iconColor(state IconState) color.RGBA {
	switch state {
	case IconStateIdle:
		return color.RGBA{255, 255, 255, 255}
	case IconStateRecording:
		return color.RGBA{255, 59, 48, 255}
	case IconStateProcessing:
		return color.RGBA{0, 122, 255, 255}
	case IconStateSpeaking:
		return color.RGBA{52, 199, 89, 255}
	case IconStateError:
		return color.RGBA{255, 149, 0, 255}
	default:
		return color.RGBA{128, 128, 128, 255}
	}
}

// createTextIconBytes creates a PNG icon with "IP" text in the state color
func createTextIconBytes(state IconState) []byte {
	// 32x22 fits the menu bar at retina height
	img := image.NewRGBA(image.Rect(0, 0, 32, 22))
	drawText(img, "IP", 3, 4, iconColor(state))

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return minimalPNG()
	}
	return buf.Bytes()
}

// Bitmap font data, 7 rows of 5 bits per character
var bitmapFont = map[rune][]byte{
	'I': {
		0b11111,
		0b00100,
		0b00100,
		0b00100,
		0b00100,
		0b00100,
		0b11111,
	},
	'P': {
		0b11110,
		0b10001,
		0b10001,
		0b11110,
		0b10000,
		0b10000,
		0b10000,
	},
}

// drawText draws text on the image using the bitmap font at 2x scale
func drawText(img *image.RGBA, text string, startX, startY int, c color.RGBA) {
	const (
		charWidth  = 6 // 5 pixels + 1 spacing
		charHeight = 7
		scale      = 2
	)

	x := startX
	bounds := img.Bounds()
	for _, ch := range text {
		if pattern, ok := bitmapFont[ch]; ok {
			for row := 0; row < charHeight; row++ {
				for col := 0; col < 5; col++ {
					if pattern[row]&(1<<(4-col)) == 0 {
						continue
					}
					for sy := 0; sy < scale; sy++ {
						for sx := 0; sx < scale; sx++ {
							px := x + col*scale + sx
							py := startY + row*scale + sy
							if px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y {
								img.SetRGBA(px, py, c)
							}
						}
					}
				}
			}
		}
		x += charWidth * scale
	}
}

// minimalPNG returns a minimal valid 1x1 PNG as fallback
func minimalPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}
