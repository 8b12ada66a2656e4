package report

// FitWithin scales a w×h pixel image into a maxW×maxH box preserving aspect
// ratio. Small images are scaled up to touch the box. ok is false for
// degenerate dimensions.
func FitWithin(w, h int, maxW, maxH float64) (width, height float64, ok bool) {
	if w <= 0 || h <= 0 || maxW <= 0 || maxH <= 0 {
		return 0, 0, false
	}
	ratio := min(maxW/float64(w), maxH/float64(h))
	return float64(w) * ratio, float64(h) * ratio, true
}
