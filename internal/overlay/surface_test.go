package overlay

import (
	"errors"
	"time"

	"github.com/jmylchreest/scatter/internal/config"
)

// fakeSurface records every call the engine makes.
type fakeSurface struct {
	next     Renderable
	size     Size
	contents map[Renderable]Content
	outlines map[Renderable]Rect
	placed   map[Renderable]Point
	fadeIns  map[Renderable]time.Duration
	fadeOuts map[Renderable]time.Duration
	releases map[Renderable]int
	styles   []config.Styles

	attachErr  error
	measureErr error
}

func newFakeSurface(size Size) *fakeSurface {
	return &fakeSurface{
		size:     size,
		contents: make(map[Renderable]Content),
		outlines: make(map[Renderable]Rect),
		placed:   make(map[Renderable]Point),
		fadeIns:  make(map[Renderable]time.Duration),
		fadeOuts: make(map[Renderable]time.Duration),
		releases: make(map[Renderable]int),
	}
}

func (s *fakeSurface) Attach(c Content) (Renderable, error) {
	if s.attachErr != nil {
		return 0, s.attachErr
	}
	s.next++
	s.contents[s.next] = c
	return s.next, nil
}

func (s *fakeSurface) Measure(r Renderable) (Size, error) {
	if s.measureErr != nil {
		return Size{}, s.measureErr
	}
	if _, ok := s.contents[r]; !ok {
		return Size{}, errors.New("unknown renderable")
	}
	return s.size, nil
}

func (s *fakeSurface) Place(r Renderable, p Point) error {
	s.placed[r] = p
	return nil
}

func (s *fakeSurface) FadeIn(r Renderable, d time.Duration)  { s.fadeIns[r] = d }
func (s *fakeSurface) FadeOut(r Renderable, d time.Duration) { s.fadeOuts[r] = d }

func (s *fakeSurface) Outline(rect Rect) (Renderable, error) {
	s.next++
	s.outlines[s.next] = rect
	return s.next, nil
}

func (s *fakeSurface) Release(r Renderable) {
	s.releases[r]++
}

func (s *fakeSurface) SetStyles(st config.Styles) {
	s.styles = append(s.styles, st)
}

// live returns the message renderables that have not been released.
func (s *fakeSurface) live() []Renderable {
	var out []Renderable
	for r := range s.contents {
		if s.releases[r] == 0 {
			out = append(out, r)
		}
	}
	return out
}

// liveOutlines returns the outlines that have not been released.
func (s *fakeSurface) liveOutlines() []Rect {
	var out []Rect
	for r, rect := range s.outlines {
		if s.releases[r] == 0 {
			out = append(out, rect)
		}
	}
	return out
}
