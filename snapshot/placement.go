package snapshot

// WidthFraction is the share of the frame width a snapshot occupies.
const WidthFraction = 0.85

// Placement positions an overlay on the background frame, in pixels.
type Placement struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Place scales an image to WidthFraction of the frame width keeping its
// aspect ratio, centers it horizontally and anchors its top at one eighth
// of the frame height.
func Place(imgW, imgH, frameW, frameH int) Placement {
	width := int(float64(frameW) * WidthFraction)
	height := 0
	if imgW > 0 {
		height = int(float64(imgH) * float64(width) / float64(imgW))
	}
	return Placement{
		X:      frameW/2 - width/2,
		Y:      frameH / 8,
		Width:  width,
		Height: height,
	}
}
