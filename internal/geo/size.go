package geo

import "math"

// sizeFalloff is the per-zoom-level shrink factor below maxZoom.
const sizeFalloff = 2.0 / 3.0

// SizeForZoom maps a viewport zoom level to an icon size. It returns
// minSize at or below minZoom, maxSize at or above maxZoom, and
// maxSize * (2/3)^(maxZoom-zoom) in between, never less than minSize.
func SizeForZoom(zoom, minSize, maxSize, minZoom, maxZoom float64) float64 {
	if zoom <= minZoom {
		return minSize
	}
	if zoom >= maxZoom {
		return maxSize
	}
	size := maxSize * math.Pow(sizeFalloff, maxZoom-zoom)
	if size < minSize {
		return minSize
	}
	return size
}

// SizeRange bundles the SizeForZoom parameters.
type SizeRange struct {
	MinSize float64
	MaxSize float64
	MinZoom float64
	MaxZoom float64
}

// For returns the icon size for zoom.
func (r SizeRange) For(zoom float64) float64 {
	return SizeForZoom(zoom, r.MinSize, r.MaxSize, r.MinZoom, r.MaxZoom)
}
