package types

// Size is an image size in pixels.
type Size struct {
	Width  float64
	Height float64
}
