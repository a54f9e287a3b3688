// Package spatial maintains a quadtree index of live user locations.
// Only users with location sharing enabled are present in the index.
package spatial

import (
	"sync"
	"time"

	"github.com/asim/quadtree"
)

// Position is one indexed location.
type Position struct {
	ID        string
	Lat       float64
	Lon       float64
	UpdatedAt time.Time
}

// Index holds current positions keyed by user id.
type Index struct {
	mu     sync.RWMutex
	tree   *quadtree.QuadTree
	points map[string]*quadtree.Point
}

// New creates an empty index covering the whole globe.
func New() *Index {
	center := quadtree.NewPoint(0, 0, nil)
	half := quadtree.NewPoint(90, 180, nil)
	boundary := quadtree.NewAABB(center, half)

	return &Index{
		tree:   quadtree.New(boundary, 0, nil),
		points: make(map[string]*quadtree.Point),
	}
}

// Insert adds or moves an entry.
func (x *Index) Insert(id string, lat, lon float64) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if existing, ok := x.points[id]; ok {
		x.tree.Remove(existing)
	}

	pos := &Position{ID: id, Lat: lat, Lon: lon, UpdatedAt: time.Now()}
	point := quadtree.NewPoint(lat, lon, pos)
	if !x.tree.Insert(point) {
		delete(x.points, id)
		return
	}
	x.points[id] = point
}

// Remove drops an entry. Unknown ids are a no-op.
func (x *Index) Remove(id string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if point, ok := x.points[id]; ok {
		x.tree.Remove(point)
		delete(x.points, id)
	}
}

// Get returns the current position for an id.
func (x *Index) Get(id string) (Position, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	point, ok := x.points[id]
	if !ok {
		return Position{}, false
	}
	pos, ok := point.Data().(*Position)
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// Nearby finds up to limit entries within radiusMeters of a location.
func (x *Index) Nearby(lat, lon, radiusMeters float64, limit int) []Position {
	x.mu.RLock()
	defer x.mu.RUnlock()

	center := quadtree.NewPoint(lat, lon, nil)
	half := center.HalfPoint(radiusMeters)
	boundary := quadtree.NewAABB(center, half)

	points := x.tree.KNearest(boundary, limit, func(p *quadtree.Point) bool {
		_, ok := p.Data().(*Position)
		return ok
	})

	var results []Position
	for _, p := range points {
		if pos, ok := p.Data().(*Position); ok {
			results = append(results, *pos)
		}
	}
	return results
}

// Len returns the number of indexed entries.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.points)
}
