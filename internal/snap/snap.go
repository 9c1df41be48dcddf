// Package snap computes snap targets for timeline drag operations. Given the
// frame positions being dragged and the candidate targets built from the
// current timeline state, it finds the best target within a threshold,
// preferring smaller distance and breaking near-ties by target kind.
package snap

import "math"

// Kind orders snap targets by priority. Higher values win distance ties.
type Kind int

const (
	KindMarker Kind = iota
	KindPlayhead
	KindClipEdge
)

func (k Kind) String() string {
	switch k {
	case KindMarker:
		return "marker"
	case KindPlayhead:
		return "playhead"
	case KindClipEdge:
		return "clip-edge"
	default:
		return "unknown"
	}
}

// distanceEpsilon is the spread within which two candidate distances count as
// tied, letting kind priority decide.
const distanceEpsilon = 1e-6

// Target is a position a dragged edge can snap to. Targets are rebuilt from
// timeline state on every drag frame and never persisted.
type Target struct {
	Frame   float64
	Kind    Kind
	OwnerID string
}

// Match describes the winning snap: which source position matched which
// target, and the delta to add to the drag to land on it.
type Match struct {
	Source   float64
	Target   Target
	Distance float64
}

// Delta returns the adjustment that moves Source onto the target.
func (m Match) Delta() float64 {
	return m.Target.Frame - m.Source
}

// Best returns the best snap within threshold frames across all source
// positions, or ok=false when nothing qualifies. Degenerate inputs (no
// sources, no targets, non-positive or NaN threshold) never match.
func Best(sources []float64, targets []Target, threshold float64) (Match, bool) {
	if len(sources) == 0 || len(targets) == 0 {
		return Match{}, false
	}
	if !(threshold > 0) || math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return Match{}, false
	}

	var best Match
	found := false
	for _, src := range sources {
		if math.IsNaN(src) || math.IsInf(src, 0) {
			continue
		}
		for _, tgt := range targets {
			dist := math.Abs(tgt.Frame - src)
			if dist > threshold {
				continue
			}
			cand := Match{Source: src, Target: tgt, Distance: dist}
			if !found || better(cand, best) {
				best = cand
				found = true
			}
		}
	}
	return best, found
}

// better reports whether a beats b: strictly smaller distance wins, and
// within epsilon the higher-priority kind wins.
func better(a, b Match) bool {
	if math.Abs(a.Distance-b.Distance) <= distanceEpsilon {
		return a.Target.Kind > b.Target.Kind
	}
	return a.Distance < b.Distance
}
