package overlay

import (
	"time"

	"github.com/jmylchreest/scatter/internal/config"
	"github.com/jmylchreest/scatter/internal/emote"
)

// Renderable is an opaque handle to a visual object owned by a Surface.
// The zero value is never a valid handle.
type Renderable uint64

// Content is everything a surface needs to draw a message.
type Content struct {
	ID       string
	Sender   string
	Segments []emote.Segment
	Styles   config.Styles // Snapshot at creation; later style changes do not apply
}

// Surface is the rendering collaborator. The engine owns handles and
// footprints only; all drawing happens behind this interface. Methods are
// called from the event loop goroutine.
type Surface interface {
	// Attach creates an invisible renderable that can be measured.
	Attach(c Content) (Renderable, error)
	// Measure returns the rendered size in viewport pixels.
	Measure(r Renderable) (Size, error)
	// Place moves the renderable's top-left corner to p.
	Place(r Renderable, p Point) error
	// FadeIn animates opacity from 0 to 1 over d.
	FadeIn(r Renderable, d time.Duration)
	// FadeOut animates opacity from 1 to 0 over d.
	FadeOut(r Renderable, d time.Duration)
	// Outline draws a diagnostic rectangle.
	Outline(rect Rect) (Renderable, error)
	// Release removes the renderable. Releasing an unknown or already
	// released handle is a no-op.
	Release(r Renderable)
}

// StyleSetter is implemented by surfaces that react to style changes
// outside of individual messages.
type StyleSetter interface {
	SetStyles(s config.Styles)
}
