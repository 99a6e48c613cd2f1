package model

// Shape distinguishes the two raw judge payloads.
type Shape string

const (
	// ShapeProbe is a single-case run against case index 0.
	ShapeProbe Shape = "probe"
	// ShapeFull is a multi-case judge result from a submission.
	ShapeFull Shape = "full"
)

// RawResult is untrusted judge output as received on the wire.
type RawResult struct {
	Shape Shape
	Body  []byte
}
