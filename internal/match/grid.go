package match

import (
	"math"

	"github.com/sentinelmap/signaudit/internal/geo"
)

// metersPerDegree is the north-south span of one degree of latitude on
// the reference sphere.
const metersPerDegree = geo.EarthRadiusMeters * math.Pi / 180

// gridSlack pads the ring-expansion stop bound to absorb the small
// disagreement between the equirectangular cell metric and the haversine
// distances actually compared.
const gridSlack = 1.05

// Grid is a cell-bucketed index over an equirectangular projection of the
// candidate set. Queries expand outward from the query cell ring by ring,
// which cuts the per-query cost from O(n) to roughly the local point
// density.
//
// Results match Linear exactly, including the lowest-index tie break. The
// projection assumes a regional candidate set: extents of a few hundred
// kilometres that do not cross the antimeridian. For global or
// pole-spanning data use Linear.
type Grid struct {
	candidates []geo.Coordinate
	cellSize   float64
	cells      map[int64][]int
	cosRef     float64

	minCX, maxCX int64
	minCY, maxCY int64
}

// NewGrid buckets candidates into square cells of cellSizeMeters. Cell
// size on the order of the reconciliation thresholds works well: smaller
// cells mean more rings per query, larger cells mean more candidates per
// cell.
func NewGrid(candidates []geo.Coordinate, cellSizeMeters float64) *Grid {
	ix := &Grid{
		candidates: candidates,
		cellSize:   cellSizeMeters,
		cells:      make(map[int64][]int, len(candidates)),
		cosRef:     1,
	}
	if len(candidates) == 0 {
		return ix
	}

	// Scale longitude by the cosine of the mean latitude so cells are
	// roughly square in meters across the covered region.
	var latSum float64
	for _, c := range candidates {
		latSum += c.Lat
	}
	ix.cosRef = math.Cos(latSum / float64(len(candidates)) * math.Pi / 180)
	if ix.cosRef < 1e-6 {
		ix.cosRef = 1e-6
	}

	for i, c := range candidates {
		cx, cy := ix.cellOf(c)
		ix.cells[cellKey(cx, cy)] = append(ix.cells[cellKey(cx, cy)], i)
		if i == 0 {
			ix.minCX, ix.maxCX = cx, cx
			ix.minCY, ix.maxCY = cy, cy
			continue
		}
		ix.minCX = min(ix.minCX, cx)
		ix.maxCX = max(ix.maxCX, cx)
		ix.minCY = min(ix.minCY, cy)
		ix.maxCY = max(ix.maxCY, cy)
	}
	return ix
}

// Nearest expands rings of cells around the query until the best hit is
// provably closer than anything in an unscanned ring.
func (ix *Grid) Nearest(q geo.Coordinate) Record {
	rec := Record{Query: q, Meters: math.Inf(1), Index: -1}
	if len(ix.candidates) == 0 {
		return rec
	}

	cx, cy := ix.cellOf(q)

	// No unscanned cell exists beyond this ring.
	limit := max(
		max(abs64(cx-ix.minCX), abs64(ix.maxCX-cx)),
		max(abs64(cy-ix.minCY), abs64(ix.maxCY-cy)),
	)

	for ring := int64(0); ring <= limit; ring++ {
		// Candidates beyond ring r sit at least (r-1) cell widths from the
		// query in the projected plane; once the best hit beats that bound
		// the remaining rings cannot improve it.
		if rec.Index >= 0 && float64(ring-1)*ix.cellSize > rec.Meters*gridSlack {
			break
		}
		ix.scanRing(q, cx, cy, ring, &rec)
	}
	return rec
}

func (ix *Grid) scanRing(q geo.Coordinate, cx, cy, ring int64, rec *Record) {
	if ring == 0 {
		ix.scanCell(q, cx, cy, rec)
		return
	}
	for dx := -ring; dx <= ring; dx++ {
		ix.scanCell(q, cx+dx, cy-ring, rec)
		ix.scanCell(q, cx+dx, cy+ring, rec)
	}
	for dy := -ring + 1; dy <= ring-1; dy++ {
		ix.scanCell(q, cx-ring, cy+dy, rec)
		ix.scanCell(q, cx+ring, cy+dy, rec)
	}
}

func (ix *Grid) scanCell(q geo.Coordinate, cx, cy int64, rec *Record) {
	for _, i := range ix.cells[cellKey(cx, cy)] {
		d := geo.Distance(q, ix.candidates[i])
		if d < rec.Meters || (d == rec.Meters && i < rec.Index) {
			c := ix.candidates[i]
			rec.Nearest = &c
			rec.Meters = d
			rec.Index = i
		}
	}
}

func (ix *Grid) cellOf(c geo.Coordinate) (int64, int64) {
	x := c.Lon * metersPerDegree * ix.cosRef
	y := c.Lat * metersPerDegree
	return int64(math.Floor(x / ix.cellSize)), int64(math.Floor(y / ix.cellSize))
}

// cellKey maps a signed cell pair to a unique key using zigzag encoding
// and Szudzik's pairing function.
func cellKey(cx, cy int64) int64 {
	var a, b int64
	if cx >= 0 {
		a = 2 * cx
	} else {
		a = -2*cx - 1
	}
	if cy >= 0 {
		b = 2 * cy
	} else {
		b = -2*cy - 1
	}
	if a >= b {
		return a*a + a + b
	}
	return a + b*b
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
