package overlay

import (
	"math"
	"math/rand/v2"
	"sort"
)

// Placement search limits.
const (
	DefaultMaxAttempts = 50
	randomTrials       = 20
	quadrantTrials     = 10
	gridSize           = 5
	jitter             = 10
)

// Tier identifies the strategy that produced a placement.
type Tier int

const (
	TierRandom   Tier = iota + 1 // Uniform random sampling
	TierQuadrant                 // Random sampling in the emptiest quadrants
	TierGrid                     // Minimum-overlap grid cell with jitter
)

func (t Tier) String() string {
	switch t {
	case TierRandom:
		return "random"
	case TierQuadrant:
		return "quadrant"
	case TierGrid:
		return "grid"
	default:
		return "unknown"
	}
}

// Placement is the outcome of a placement search.
type Placement struct {
	Point
	Tier     Tier
	Overlaps int // Active footprints the result still overlaps (grid tier only)
}

// Placer finds positions for new messages that avoid the footprints of
// messages already on screen. It never fails: the grid tier always yields
// a position, possibly overlapping under extreme density.
//
// A Placer is not safe for concurrent use.
type Placer struct {
	rng         *rand.Rand
	maxAttempts int
}

// NewPlacer creates a placer drawing positions from src.
func NewPlacer(src rand.Source, maxAttempts int) *Placer {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Placer{rng: rand.New(src), maxAttempts: maxAttempts}
}

// Overlaps reports whether a message occupying candidate collides with any
// active footprint once both are padded by margin.
func Overlaps(candidate Rect, active []Rect, margin int) bool {
	c := candidate.Pad(margin)
	for _, a := range active {
		if c.Intersects(a.Pad(margin)) {
			return true
		}
	}
	return false
}

// countOverlaps returns how many active footprints candidate collides with.
func countOverlaps(candidate Rect, active []Rect, margin int) int {
	c := candidate.Pad(margin)
	n := 0
	for _, a := range active {
		if c.Intersects(a.Pad(margin)) {
			n++
		}
	}
	return n
}

// Place returns a position for a message of the given size.
func (p *Placer) Place(size Size, active []Rect, bounds Bounds, margin int) Placement {
	if pt, ok := p.placeRandom(size, active, bounds, margin); ok {
		return Placement{Point: pt, Tier: TierRandom}
	}
	if pt, ok := p.placeQuadrant(size, active, bounds, margin); ok {
		return Placement{Point: pt, Tier: TierQuadrant}
	}
	pt, overlaps := p.placeGrid(size, active, bounds, margin)
	return Placement{Point: pt, Tier: TierGrid, Overlaps: overlaps}
}

func (p *Placer) placeRandom(size Size, active []Rect, bounds Bounds, margin int) (Point, bool) {
	for range min(randomTrials, p.maxAttempts) {
		pt := Point{X: p.rng.IntN(bounds.MaxX + 1), Y: p.rng.IntN(bounds.MaxY + 1)}
		if !Overlaps(RectAt(pt, size), active, margin) {
			return pt, true
		}
	}
	return Point{}, false
}

type quadrant struct {
	origin Point
	count  int
}

func (p *Placer) placeQuadrant(size Size, active []Rect, bounds Bounds, margin int) (Point, bool) {
	halfX, halfY := bounds.MaxX/2, bounds.MaxY/2

	// Top-left, top-right, bottom-left, bottom-right.
	quads := []quadrant{
		{origin: Point{0, 0}},
		{origin: Point{halfX, 0}},
		{origin: Point{0, halfY}},
		{origin: Point{halfX, halfY}},
	}

	midX, midY := float64(bounds.MaxX)/2, float64(bounds.MaxY)/2
	for _, a := range active {
		cx, cy := a.Center()
		i := 0
		if cx >= midX {
			i++
		}
		if cy >= midY {
			i += 2
		}
		quads[i].count++
	}

	sort.SliceStable(quads, func(i, j int) bool {
		return quads[i].count < quads[j].count
	})

	for _, q := range quads {
		for range quadrantTrials {
			pt := bounds.Clamp(Point{
				X: q.origin.X + p.rng.IntN(halfX+1),
				Y: q.origin.Y + p.rng.IntN(halfY+1),
			})
			if !Overlaps(RectAt(pt, size), active, margin) {
				return pt, true
			}
		}
	}
	return Point{}, false
}

func (p *Placer) placeGrid(size Size, active []Rect, bounds Bounds, margin int) (Point, int) {
	cellW := float64(bounds.MaxX) / gridSize
	cellH := float64(bounds.MaxY) / gridSize

	best := Point{}
	bestCount := math.MaxInt
	for i := range gridSize {
		for j := range gridSize {
			pt := Point{
				X: int(math.Floor(float64(i) * cellW)),
				Y: int(math.Floor(float64(j) * cellH)),
			}
			n := countOverlaps(RectAt(pt, size), active, margin)
			if n < bestCount {
				best, bestCount = pt, n
				if n == 0 {
					return best, 0
				}
			}
		}
	}

	best.X += p.rng.IntN(2*jitter+1) - jitter
	best.Y += p.rng.IntN(2*jitter+1) - jitter
	best = bounds.Clamp(best)
	return best, countOverlaps(RectAt(best, size), active, margin)
}
