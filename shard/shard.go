// Package shard implements the partitioning controller: deterministic
// assignment of tickers (stage 1) and grouped files (stage 2) to a
// fixed number of worker shards, so that two shards run over the same
// feed see disjoint symbol sets.
package shard

import (
	"os"
	"sort"
)

// Assignment answers "does this shard own symbol N" for a given
// (shard_count, shard_rank) pair.
type Assignment struct {
	Count int
	Rank  int
}

// New validates and returns an Assignment. Count must be positive and
// Rank must fall in [0, Count).
func New(count, rank int) (Assignment, error) {
	if count <= 0 {
		return Assignment{}, &InvalidAssignmentError{Count: count, Rank: rank, Reason: "shard count must be positive"}
	}
	if rank < 0 || rank >= count {
		return Assignment{}, &InvalidAssignmentError{Count: count, Rank: rank, Reason: "shard rank out of range"}
	}
	return Assignment{Count: count, Rank: rank}, nil
}

// InvalidAssignmentError reports a malformed (count, rank) pair.
type InvalidAssignmentError struct {
	Count, Rank int
	Reason      string
}

func (e *InvalidAssignmentError) Error() string {
	return e.Reason
}

// OwnsPosition reports whether this shard owns the item at the given
// zero-based encounter position, per spec.md's `position mod size ==
// rank` rule. Stage 1 calls this once per distinct ticker, in R-message
// encounter order.
func (a Assignment) OwnsPosition(position int) bool {
	return position%a.Count == a.Rank
}

// FileInfo is the minimal shape shard.AssignFiles needs: a path and its
// size, used to balance stage-2 work across shards.
type FileInfo struct {
	Path string
	Size int64
}

// AssignFiles returns the subset of files this shard owns for stage 2,
// after sorting all candidates by size ascending (spec.md §4.7: "sorted
// by file size ascending to smooth wall-time tails") and applying the
// same position-modulo rule stage 1 uses for tickers.
func (a Assignment) AssignFiles(files []FileInfo) []FileInfo {
	sorted := make([]FileInfo, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Size < sorted[j].Size })

	var mine []FileInfo
	for i, f := range sorted {
		if a.OwnsPosition(i) {
			mine = append(mine, f)
		}
	}
	return mine
}

// StatFiles resolves paths to FileInfo using their on-disk size, the
// usual way AssignFiles is fed in the CLI driver.
func StatFiles(paths []string) ([]FileInfo, error) {
	infos := make([]FileInfo, 0, len(paths))
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		infos = append(infos, FileInfo{Path: p, Size: fi.Size()})
	}
	return infos, nil
}
