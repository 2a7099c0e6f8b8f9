package retrieval

import (
	"sort"

	"github.com/brunobiangulo/policyreason/store"
)

const rrfK = 60 // RRF constant (standard value from literature)

// FusedResultInfo holds per-result method contribution metadata.
type FusedResultInfo struct {
	Methods []string `json:"methods"`
	VecRank int      `json:"vec_rank,omitempty"` // 1-based, 0 = not present
	FTSRank int      `json:"fts_rank,omitempty"` // 1-based, 0 = not present
}

// fuseRRF combines ranked vector and FTS results with Reciprocal Rank
// Fusion: score = sum(weight_i / (k + rank_i)). Ties are broken by the
// order results were first seen, vector results first.
func fuseRRF(
	vecResults, ftsResults []store.RetrievalResult,
	weightVec, weightFTS float64,
	maxResults int,
) ([]store.RetrievalResult, map[int64]FusedResultInfo) {
	type fusedEntry struct {
		result store.RetrievalResult
		score  float64
		seen   int
		info   FusedResultInfo
	}

	fused := make(map[int64]*fusedEntry)
	entry := func(r store.RetrievalResult) *fusedEntry {
		e, ok := fused[r.ChunkID]
		if !ok {
			e = &fusedEntry{result: r, seen: len(fused)}
			fused[r.ChunkID] = e
		}
		return e
	}

	for rank, r := range vecResults {
		e := entry(r)
		e.score += weightVec / float64(rrfK+rank+1)
		e.info.Methods = append(e.info.Methods, "vector")
		e.info.VecRank = rank + 1
	}

	for rank, r := range ftsResults {
		e := entry(r)
		e.score += weightFTS / float64(rrfK+rank+1)
		e.info.Methods = append(e.info.Methods, "fts")
		e.info.FTSRank = rank + 1
	}

	entries := make([]*fusedEntry, 0, len(fused))
	for _, e := range fused {
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].seen < entries[j].seen
	})

	if maxResults > 0 && len(entries) > maxResults {
		entries = entries[:maxResults]
	}

	results := make([]store.RetrievalResult, len(entries))
	infoMap := make(map[int64]FusedResultInfo, len(entries))
	for i, e := range entries {
		results[i] = e.result
		results[i].Score = e.score
		infoMap[e.result.ChunkID] = e.info
	}

	return results, infoMap
}
