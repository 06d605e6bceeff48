package store

import (
	"sync"

	"github.com/coder/hnsw"

	"github.com/glasslink/faceid/internal/identity"
)

// PopulationIndex is an in-memory approximate-nearest-neighbor index over the
// enrolled population, keyed by user ID. It narrows recognition to a single
// candidate in large populations; the caller re-verifies the candidate with
// an exact distance, so the index never decides a match by itself.
//
// The graph does not support removal, so deletes are tracked as tombstones
// and filtered out of search results.
type PopulationIndex struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[string]
	vectors map[string]identity.Vector
	dead    map[string]bool
}

// NewPopulationIndex creates an empty index using the Euclidean metric.
func NewPopulationIndex() *PopulationIndex {
	g := hnsw.NewGraph[string]()
	g.M = 16
	g.Ml = 1.0 / 16.0
	g.Distance = hnsw.EuclideanDistance

	return &PopulationIndex{
		graph:   g,
		vectors: make(map[string]identity.Vector),
		dead:    make(map[string]bool),
	}
}

// Add inserts or refreshes the vector for userID.
func (idx *PopulationIndex) Add(userID string, vec identity.Vector) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.graph.Add(hnsw.MakeNode(userID, vec.Clone()))
	idx.vectors[userID] = vec.Clone()
	delete(idx.dead, userID)
}

// Remove tombstones userID so searches no longer return it.
func (idx *PopulationIndex) Remove(userID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	delete(idx.vectors, userID)
	idx.dead[userID] = true
}

// Nearest returns the live identity closest to probe together with its exact
// distance. ok is false when the index holds no live entries or the graph
// returns only tombstoned neighbors.
func (idx *PopulationIndex) Nearest(probe identity.Vector) (userID string, distance float64, ok bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.vectors) == 0 {
		return "", 0, false
	}

	// Over-fetch so tombstoned neighbors can be skipped.
	k := len(idx.dead) + 1
	neighbors := idx.graph.Search(probe, k)
	for _, n := range neighbors {
		vec, live := idx.vectors[n.Key]
		if !live {
			continue
		}
		return n.Key, identity.Distance(probe, vec), true
	}
	return "", 0, false
}

// Len returns the number of live entries.
func (idx *PopulationIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}
