package stages

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/google/uuid"

	"wallgeometry/internal/geometry"
	"wallgeometry/internal/pipeline"
)

// pairIDNamespace is the fixed UUIDv5 namespace every candidate pair id is
// derived from. Using a fixed namespace (rather than the ambient random
// source the original relied on) makes pair_id a pure function of the two
// entity ids, satisfying the determinism contract.
var pairIDNamespace = uuid.MustParse("6f1ad1de-23d1-4c9a-9b0f-2a6a2b2d8f11")

// ParallelNaiveStage groups deduplicated entities by layer, computes
// per-layer bboxes (in parallel, bounded at GOMAXPROCS), flattens them for
// downstream stages, and then runs the O(n^2) (or grid-accelerated)
// wall-candidate detector over every Line entity.
type ParallelNaiveStage struct{}

func (s *ParallelNaiveStage) Name() string { return "PARALLEL_NAIVE" }

func (s *ParallelNaiveStage) Run(ctx context.Context, bundle *pipeline.Bundle, cfg pipeline.AlgorithmConfig) (pipeline.StageMetrics, error) {
	if bundle.CleanDedup == nil {
		return pipeline.StageMetrics{}, pipeline.NewStageError(s.Name(), pipeline.KindInvalidInput, errMissingUpstream("CLEAN_DEDUP"))
	}

	byLayer := map[pipeline.LayerName][]pipeline.Entity{}
	var layerOrder []pipeline.LayerName
	for _, e := range bundle.CleanDedup.Entities {
		if _, ok := byLayer[e.Layer()]; !ok {
			layerOrder = append(layerOrder, e.Layer())
		}
		byLayer[e.Layer()] = append(byLayer[e.Layer()], e)
	}
	sort.Slice(layerOrder, func(i, j int) bool { return layerOrder[i] < layerOrder[j] })

	bboxes := computeLayerBBoxesParallel(byLayer, layerOrder)

	// Flattening is serial so the order is deterministic: sorted layer name,
	// then clean-dedup order within the layer.
	flat := make([]pipeline.Entity, 0, len(bundle.CleanDedup.Entities))
	for _, ln := range layerOrder {
		flat = append(flat, byLayer[ln]...)
	}

	lines := make([]pipeline.Line, 0, len(flat))
	for _, e := range flat {
		if l, ok := e.(pipeline.Line); ok {
			lines = append(lines, l)
		}
	}

	if len(lines) > cfg.MaxEntities {
		return pipeline.StageMetrics{}, pipeline.NewStageError(s.Name(), pipeline.KindOversizedInput,
			fmt.Errorf("line count %d exceeds safety cap %d", len(lines), cfg.MaxEntities))
	}

	pairs, rejectionCounts, unpaired, err := detectCandidatePairs(lines, cfg)
	if err != nil {
		return pipeline.StageMetrics{}, pipeline.NewStageError(s.Name(), pipeline.KindCorruptUpstream, err)
	}

	bundle.ParallelNaive = &pipeline.ParallelNaiveResult{
		LayerBBoxes:       bboxes,
		FlatEntities:      flat,
		Pairs:             pairs,
		UnpairedEntityIDs: unpaired,
		RejectionCounts:   rejectionCounts,
	}

	return pipeline.StageMetrics{
		Stage: s.Name(),
		Counts: map[string]int{
			"layers":   len(layerOrder),
			"lines":    len(lines),
			"pairs":    len(pairs),
			"unpaired": len(unpaired),
		},
	}, nil
}

// computeLayerBBoxesParallel computes each layer's bbox with a bounded
// worker pool; the result map assembly happens after every goroutine has
// finished, so the outcome does not depend on completion order.
func computeLayerBBoxesParallel(byLayer map[pipeline.LayerName][]pipeline.Entity, layerOrder []pipeline.LayerName) map[pipeline.LayerName]geometry.BBox {
	result := make(map[pipeline.LayerName]geometry.BBox, len(layerOrder))
	var mu sync.Mutex
	var wg sync.WaitGroup

	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)

	for _, ln := range layerOrder {
		entities := byLayer[ln]
		wg.Add(1)
		sem <- struct{}{}
		go func(ln pipeline.LayerName, entities []pipeline.Entity) {
			defer wg.Done()
			defer func() { <-sem }()
			box := geometry.EmptyBBox()
			for _, e := range entities {
				box = box.Union(e.BBox())
			}
			mu.Lock()
			result[ln] = box
			mu.Unlock()
		}(ln, entities)
	}
	wg.Wait()
	return result
}

// detectCandidatePairs runs the three geometric predicates from spec
// section 4.6 over every unordered pair of lines, in (i, j) index order,
// i < j. Above cfg.SpatialGridThreshold lines it buckets each line into
// every cell its own bbox overlaps, in a uniform grid sized at
// 2*MaxDistanceMM, and checks the one-cell neighbourhood around that whole
// span rather than a single midpoint bucket; below the threshold (and
// whenever UseSpatialGrid is false) it falls back to the plain O(n^2) scan.
// Both paths must produce an identical candidate set; the rejection counts
// evaluatePair tallies, however, only reflect pairs that path actually
// visited (see ParallelNaiveResult's RejectionCounts), so they are not
// expected to match between the two paths on the same input.
func detectCandidatePairs(lines []pipeline.Line, cfg pipeline.AlgorithmConfig) ([]pipeline.CandidatePair, map[string]int, []pipeline.EntityID, error) {
	counts := map[string]int{
		"not_parallel":          0,
		"distance_out_of_range": 0,
		"overlap_too_short":     0,
	}
	paired := map[pipeline.EntityID]bool{}
	type indexedPair struct {
		i, j int
		pair pipeline.CandidatePair
	}
	var indexed []indexedPair
	var firstErr error

	emit := func(i, j int) {
		if firstErr != nil {
			return
		}
		pair, ok, err := evaluatePair(lines[i], lines[j], cfg, counts)
		if err != nil {
			firstErr = err
			return
		}
		if ok {
			indexed = append(indexed, indexedPair{i: i, j: j, pair: pair})
			paired[lines[i].EntityID] = true
			paired[lines[j].EntityID] = true
		}
	}

	if cfg.UseSpatialGrid && len(lines) > cfg.SpatialGridThreshold && cfg.MaxDistanceMM > 0 {
		gridPairIndices(lines, cfg.MaxDistanceMM, emit)
	} else {
		for i := 0; i < len(lines); i++ {
			for j := i + 1; j < len(lines); j++ {
				emit(i, j)
			}
		}
	}

	if firstErr != nil {
		return nil, nil, nil, firstErr
	}

	// Emitted in (i, j) index order regardless of which detection path
	// found them, so the grid accelerator and the O(n^2) reference agree
	// byte-for-byte.
	sort.Slice(indexed, func(a, b int) bool {
		if indexed[a].i != indexed[b].i {
			return indexed[a].i < indexed[b].i
		}
		return indexed[a].j < indexed[b].j
	})
	pairs := make([]pipeline.CandidatePair, len(indexed))
	for k, ip := range indexed {
		pairs[k] = ip.pair
	}

	var unpaired []pipeline.EntityID
	for _, l := range lines {
		if !paired[l.EntityID] {
			unpaired = append(unpaired, l.EntityID)
		}
	}
	sort.Slice(unpaired, func(i, j int) bool { return unpaired[i] < unpaired[j] })

	return pairs, counts, unpaired, nil
}

// gridPairIndices calls emit(i, j), i < j, for every pair of lines whose
// bounding boxes lie within one bucket of each other. Each line is filed
// into every bucket its own bbox overlaps (not just a single midpoint
// bucket), so a line much longer than bucketSize still gets a correct set
// of neighbours: bucketing by midpoint alone can place two lines' midpoints
// arbitrarily far apart even while the lines run close and parallel for
// most of their length, silently dropping a valid pair above
// cfg.SpatialGridThreshold.
func gridPairIndices(lines []pipeline.Line, maxDistance float64, emit func(i, j int)) {
	bucketSize := 2 * maxDistance
	type bucketKey struct{ bx, by int }
	bucketOf := func(p geometry.Point) bucketKey {
		return bucketKey{bx: int(math.Floor(p.X / bucketSize)), by: int(math.Floor(p.Y / bucketSize))}
	}

	buckets := map[bucketKey][]int{}
	spans := make([][2]bucketKey, len(lines))
	for i, l := range lines {
		bbox := geometry.BBoxFromPoints(l.Segment.P1, l.Segment.P2)
		lo := bucketOf(geometry.Point{X: bbox.MinX, Y: bbox.MinY})
		hi := bucketOf(geometry.Point{X: bbox.MaxX, Y: bbox.MaxY})
		spans[i] = [2]bucketKey{lo, hi}
		for bx := lo.bx; bx <= hi.bx; bx++ {
			for by := lo.by; by <= hi.by; by++ {
				k := bucketKey{bx: bx, by: by}
				buckets[k] = append(buckets[k], i)
			}
		}
	}

	seen := map[[2]int]bool{}
	for i := range lines {
		lo, hi := spans[i][0], spans[i][1]
		for bx := lo.bx - 1; bx <= hi.bx+1; bx++ {
			for by := lo.by - 1; by <= hi.by+1; by++ {
				nk := bucketKey{bx: bx, by: by}
				for _, j := range buckets[nk] {
					if j <= i {
						continue
					}
					pk := [2]int{i, j}
					if seen[pk] {
						continue
					}
					seen[pk] = true
					emit(i, j)
				}
			}
		}
	}
}

// evaluatePair applies the three predicates to a single ordered pair and,
// on acceptance, returns a CandidatePair. counts is incremented in place
// for whichever predicate (if any) first rejects the pair. A non-nil error
// means the pair's own geometry produced a NaN/Inf distance, overlap, or
// angle partway through — not a rejection, a corrupt upstream input.
func evaluatePair(li, lj pipeline.Line, cfg pipeline.AlgorithmConfig, counts map[string]int) (pipeline.CandidatePair, bool, error) {
	ui := li.Segment.UnitDirection()
	uj := lj.Segment.UnitDirection()

	dot := ui.Dot(uj)
	absDot := math.Abs(dot)
	cosTol := math.Cos(cfg.AngularToleranceDeg * math.Pi / 180)
	if !geometry.FiniteFloat(absDot) {
		return pipeline.CandidatePair{}, false, fmt.Errorf("pair %s/%s: non-finite direction dot product", li.EntityID, lj.EntityID)
	}
	if absDot < cosTol {
		counts["not_parallel"]++
		return pipeline.CandidatePair{}, false, nil
	}

	n := geometry.PerpVector(ui)
	d := math.Abs(lj.Segment.P1.Sub(li.Segment.P1).Dot(n))
	if !geometry.FiniteFloat(d) {
		return pipeline.CandidatePair{}, false, fmt.Errorf("pair %s/%s: non-finite perpendicular distance", li.EntityID, lj.EntityID)
	}
	if d < cfg.MinDistanceMM || d > cfg.MaxDistanceMM {
		counts["distance_out_of_range"]++
		return pipeline.CandidatePair{}, false, nil
	}

	ai, bi := project(li.Segment, ui)
	aj, bj := project(lj.Segment, ui)
	overlap := math.Max(0, math.Min(bi, bj)-math.Max(ai, aj))
	shortest := math.Min(li.Segment.Length(), lj.Segment.Length())
	var overlapPct float64
	if shortest > 0 {
		overlapPct = 100 * overlap / shortest
	}
	if !geometry.FiniteFloat(overlapPct) {
		return pipeline.CandidatePair{}, false, fmt.Errorf("pair %s/%s: non-finite overlap percentage", li.EntityID, lj.EntityID)
	}
	if overlapPct < cfg.MinOverlapPercentage {
		counts["overlap_too_short"]++
		return pipeline.CandidatePair{}, false, nil
	}

	angleDiff := math.Acos(clamp(absDot, -1, 1)) * 180 / math.Pi
	avgLen := (li.Segment.Length() + lj.Segment.Length()) / 2
	bbox := geometry.BBoxFromPoints(li.Segment.P1, li.Segment.P2, lj.Segment.P1, lj.Segment.P2)

	idA, idB := li.EntityID, lj.EntityID
	sortedA, sortedB := idA, idB
	if sortedB < sortedA {
		sortedA, sortedB = sortedB, sortedA
	}
	pairID := uuid.NewSHA1(pairIDNamespace, []byte(string(sortedA)+"|"+string(sortedB))).String()

	layer := li.LayerName

	pair := pipeline.CandidatePair{
		PairID:            pairID,
		EntityAID:         idA,
		EntityBID:         idB,
		LayerName:         layer,
		PerpendicularDist: d,
		AngleDeg:          angleDiff,
		OverlapPercentage: overlapPct,
		AverageLength:     avgLen,
		BoundingRectangle: bbox,
	}
	if !pair.Finite() {
		return pipeline.CandidatePair{}, false, fmt.Errorf("pair %s: non-finite candidate pair", pairID)
	}
	return pair, true, nil
}

// project returns segment s's projection interval [a, b] onto unit
// direction u, a <= b.
func project(s geometry.Segment, u geometry.Point) (float64, float64) {
	t1 := s.P1.Dot(u)
	t2 := s.P2.Dot(u)
	if t1 > t2 {
		return t2, t1
	}
	return t1, t2
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
