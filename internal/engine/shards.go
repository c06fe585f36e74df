package engine

import (
	"bytes"
	"sort"
	"strings"
)

// entriesPerShard is the floor below which sharding is not worth the
// per-shard setup cost.
const entriesPerShard = 512

// pathIndex is the minimal read-only view of sorted index paths the shard
// computation needs.
type pathIndex interface {
	EntryCount() int
	Path(i int) string
}

// computeSplits partitions the index path space into at most numThreads
// ranges and returns their boundary strings: a sorted sequence starting
// and ending with "" (unbounded), where adjacent pairs form half-open
// range pathspecs. Boundaries are trimmed to directory names so no shard
// edge falls inside a directory.
//
// Index entries are in git's index order: plain byte-wise comparison of
// the full paths. Each path is re-keyed with '/' mapped to byte 1 before
// sorting, which puts paths inside a directory ahead of sibling names
// that continue the directory name with a byte below '/' (such as "a-b"
// against "a/x"); the monotone repair pass below then patches the
// positions where the re-keyed order and the index order disagree,
// keeping the boundary sequence non-decreasing. Paths that genuinely
// contain byte 1 cannot be re-keyed and degrade the plan to a single
// unbounded shard.
func computeSplits(idx pathIndex, numThreads int) []string {
	n := idx.EntryCount()
	if n <= entriesPerShard || numThreads < 2 {
		return []string{"", ""}
	}

	keys := make([][]byte, n)
	for i := 0; i < n; i++ {
		p := idx.Path(i)
		if strings.IndexByte(p, 1) >= 0 {
			return []string{"", ""}
		}
		k := []byte(p)
		for j := range k {
			if k[j] == '/' {
				k[j] = 1
			}
		}
		keys[i] = k
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return bytes.Compare(keys[order[a]], keys[order[b]]) < 0
	})

	// Monotone repair: slot i of the sorted sequence is usable as a
	// boundary only if it is the i-th index entry and not smaller than
	// every index entry seen so far; otherwise it is overwritten with the
	// last usable value. res[i] < 0 stands for the empty string.
	res := make([]int, n)
	lastPos := -1
	var maxKey []byte
	for i := 0; i < n; i++ {
		idxKey := keys[i]
		pos := order[i]
		matched := pos == i
		if matched && len(maxKey) == 0 {
			lastPos = pos
			res[i] = pos
			continue
		}
		if bytes.Compare(idxKey, maxKey) > 0 {
			maxKey = idxKey
		}
		if matched && bytes.Compare(keys[pos], maxKey) >= 0 {
			lastPos = pos
			res[i] = pos
			maxKey = nil
		} else {
			res[i] = lastPos
		}
	}

	shards := n/entriesPerShard + 1
	if shards > numThreads {
		shards = numThreads
	}
	splits := make([]string, 0, shards+1)
	splits = append(splits, "")
	for i := 0; i != shards-1; i++ {
		pos := res[(i+1)*n/shards]
		if pos < 0 {
			continue
		}
		split := idx.Path(pos)
		slash := strings.LastIndexByte(split, '/')
		if slash < 0 {
			continue
		}
		split = split[:slash]
		if split > splits[len(splits)-1] {
			splits = append(splits, split)
		}
	}
	splits = append(splits, "")
	return splits
}
