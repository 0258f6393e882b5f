package recognition

import "strings"

// Point is one corner of a fragment's bounding quadrilateral.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Quad is the bounding quadrilateral of a recognized span, listed
// top-left, top-right, bottom-right, bottom-left. Coordinates grow
// rightward and downward, so smaller Y means closer to the top of the page.
// Multi-page documents offset each page so reading order is preserved.
type Quad [4]Point

// Fragment is one recognized text span. Confidence is 1.0 for text lifted
// verbatim from a digitally-native page and engine-reported otherwise.
type Fragment struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Position   Quad    `json:"position"`
}

// Top returns the vertical coordinate of the fragment's upper edge.
func (f Fragment) Top() float64 {
	top := f.Position[0].Y
	for _, p := range f.Position[1:] {
		if p.Y < top {
			top = p.Y
		}
	}
	return top
}

// JoinText concatenates fragment texts in order with a newline separator.
func JoinText(frags []Fragment) string {
	parts := make([]string, 0, len(frags))
	for _, f := range frags {
		if s := strings.TrimSpace(f.Text); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

func boxQuad(left, top, width, height float64) Quad {
	return Quad{
		{X: left, Y: top},
		{X: left + width, Y: top},
		{X: left + width, Y: top + height},
		{X: left, Y: top + height},
	}
}
