package types

// Point is a position in virtual screen coordinates.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Size is a window dimension in device-independent pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Bounds is a window rectangle in virtual screen coordinates.
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Position returns the top-left corner of the rectangle.
func (b Bounds) Position() Point {
	return Point{X: b.X, Y: b.Y}
}

// Size returns the dimensions of the rectangle.
func (b Bounds) Size() Size {
	return Size{Width: b.Width, Height: b.Height}
}

// Right returns the x coordinate one past the right edge.
func (b Bounds) Right() int {
	return b.X + b.Width
}

// Bottom returns the y coordinate one past the bottom edge.
func (b Bounds) Bottom() int {
	return b.Y + b.Height
}

// CenterX returns the horizontal center of the rectangle.
func (b Bounds) CenterX() int {
	return b.X + b.Width/2
}

// CenterY returns the vertical center of the rectangle.
func (b Bounds) CenterY() int {
	return b.Y + b.Height/2
}

// Contains reports whether the point lies inside the rectangle.
func (b Bounds) Contains(p Point) bool {
	return p.X >= b.X && p.X < b.Right() && p.Y >= b.Y && p.Y < b.Bottom()
}

// Intersects reports whether two rectangles overlap.
func (b Bounds) Intersects(o Bounds) bool {
	return b.X < o.Right() && o.X < b.Right() && b.Y < o.Bottom() && o.Y < b.Bottom()
}

// WithPosition returns a copy of the rectangle moved to p.
func (b Bounds) WithPosition(p Point) Bounds {
	b.X, b.Y = p.X, p.Y
	return b
}

// WithHeight returns a copy of the rectangle with a new height.
func (b Bounds) WithHeight(h int) Bounds {
	b.Height = h
	return b
}

// Direction identifies a cardinal movement direction.
type Direction string

const (
	DirectionUp    Direction = "up"
	DirectionDown  Direction = "down"
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

// Valid reports whether the direction is one of the four cardinal values.
func (d Direction) Valid() bool {
	switch d {
	case DirectionUp, DirectionDown, DirectionLeft, DirectionRight:
		return true
	}
	return false
}
