// ABOUTME: Overlays: face-tagged ranges anchored by live markers
// ABOUTME: Used to highlight speculative completion text until the user decides

package textbuf

// Overlay highlights the range between two markers.
type Overlay struct {
	Start *Marker
	End   *Marker
	Face  string
}

// Span is a snapshot of an overlay's range.
type Span struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Face  string `json:"face"`
}

// AddOverlay registers an overlay covering [start, end).
func (b *Buffer) AddOverlay(start, end *Marker, face string) *Overlay {
	o := &Overlay{Start: start, End: end, Face: face}
	b.mu.Lock()
	b.overlays = append(b.overlays, o)
	b.mu.Unlock()
	return o
}

// RemoveOverlay deletes o; removing an unknown overlay is a no-op.
func (b *Buffer) RemoveOverlay(o *Overlay) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, other := range b.overlays {
		if other == o {
			b.overlays = append(b.overlays[:i], b.overlays[i+1:]...)
			return true
		}
	}
	return false
}

// Overlays returns the current overlay spans.
func (b *Buffer) Overlays() []Span {
	b.mu.Lock()
	defer b.mu.Unlock()
	spans := make([]Span, 0, len(b.overlays))
	for _, o := range b.overlays {
		spans = append(spans, Span{Start: o.Start.pos, End: o.End.pos, Face: o.Face})
	}
	return spans
}
