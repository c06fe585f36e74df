package engine

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeIndex []string

func (f fakeIndex) EntryCount() int   { return len(f) }
func (f fakeIndex) Path(i int) string { return f[i] }

// gitSorted orders paths byte-wise with '/' sorting before every other
// path byte, the order computeSplits re-keys paths into. For the paths
// these tests build it coincides with git's plain byte-wise index order.
func gitSorted(paths []string) fakeIndex {
	swap := func(p string) string {
		return strings.ReplaceAll(p, "/", "\x01")
	}
	sorted := append([]string(nil), paths...)
	sort.Slice(sorted, func(i, j int) bool {
		return swap(sorted[i]) < swap(sorted[j])
	})
	return fakeIndex(sorted)
}

func makeTree(dirs, filesPerDir int) fakeIndex {
	var paths []string
	for d := 0; d < dirs; d++ {
		for f := 0; f < filesPerDir; f++ {
			paths = append(paths, fmt.Sprintf("dir%02d/sub/file%03d.go", d, f))
		}
	}
	return gitSorted(paths)
}

func checkPlan(t *testing.T, splits []string, numThreads int) {
	t.Helper()
	require.GreaterOrEqual(t, len(splits), 2)
	require.LessOrEqual(t, len(splits), numThreads+1)
	require.Equal(t, "", splits[0])
	require.Equal(t, "", splits[len(splits)-1])
	for i := 1; i < len(splits)-1; i++ {
		require.NotEqual(t, "", splits[i])
		if i > 1 {
			require.Greater(t, splits[i], splits[i-1],
				"interior boundaries must be strictly increasing")
		}
	}
}

func TestComputeSplitsSmallIndex(t *testing.T) {
	idx := makeTree(4, 100) // 400 entries <= 512
	require.Equal(t, []string{"", ""}, computeSplits(idx, 8))
}

func TestComputeSplitsEmptyIndex(t *testing.T) {
	require.Equal(t, []string{"", ""}, computeSplits(fakeIndex{}, 8))
}

func TestComputeSplitsSingleThread(t *testing.T) {
	idx := makeTree(16, 100) // 1600 entries
	require.Equal(t, []string{"", ""}, computeSplits(idx, 1))
}

func TestComputeSplitsUnsupportedByte(t *testing.T) {
	idx := makeTree(16, 100)
	bad := append(fakeIndex{"weird\x01name"}, idx...)
	require.Equal(t, []string{"", ""}, computeSplits(bad, 8))
}

func TestComputeSplitsMultipleShards(t *testing.T) {
	idx := makeTree(16, 64) // 1024 entries
	splits := computeSplits(idx, 4)
	checkPlan(t, splits, 4)
	require.Greater(t, len(splits), 2, "1024 entries over 4 threads must shard")

	// Boundaries fall on directory names: appending "/" to a boundary
	// still sorts it before its own contents.
	for _, s := range splits[1 : len(splits)-1] {
		require.True(t, strings.Contains(s, "dir"), "boundary %q should be a directory", s)
		require.False(t, strings.HasSuffix(s, "/"))
	}
}

func TestComputeSplitsJustOverShardFloor(t *testing.T) {
	var paths []string
	for i := 0; i < 513; i++ {
		paths = append(paths, fmt.Sprintf("pkg%d/f%03d.go", i%8, i))
	}
	splits := computeSplits(gitSorted(paths), 8)
	checkPlan(t, splits, 8)
	require.Greater(t, len(splits), 2)
}

func TestComputeSplitsAtShardFloor(t *testing.T) {
	var paths []string
	for i := 0; i < 512; i++ {
		paths = append(paths, fmt.Sprintf("pkg/f%03d.go", i))
	}
	require.Equal(t, []string{"", ""}, computeSplits(gitSorted(paths), 8))
}

func TestComputeSplitsDeterministic(t *testing.T) {
	idx := makeTree(12, 80)
	first := computeSplits(idx, 6)
	second := computeSplits(idx, 6)
	require.Equal(t, first, second)
}

func TestComputeSplitsCoversAllPaths(t *testing.T) {
	idx := makeTree(10, 70) // 700 entries
	splits := computeSplits(idx, 4)
	checkPlan(t, splits, 4)

	inRange := func(p, start, end string) bool {
		return (start == "" || p >= start) && (end == "" || p < end)
	}
	for i := 0; i < idx.EntryCount(); i++ {
		p := idx.Path(i)
		hits := 0
		for s := 0; s < len(splits)-1; s++ {
			if inRange(p, splits[s], splits[s+1]) {
				hits++
			}
		}
		require.Equal(t, 1, hits, "path %q must fall in exactly one shard", p)
	}
}
