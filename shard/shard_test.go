package shard

import "testing"

func TestOwnsPositionDisjoint(t *testing.T) {
	const size = 4
	seen := map[int]int{}
	for rank := 0; rank < size; rank++ {
		a, err := New(size, rank)
		if err != nil {
			t.Fatalf("New(%d,%d): %v", size, rank, err)
		}
		for pos := 0; pos < 20; pos++ {
			if a.OwnsPosition(pos) {
				seen[pos]++
			}
		}
	}
	for pos, count := range seen {
		if count != 1 {
			t.Errorf("position %d owned by %d shards, want exactly 1", pos, count)
		}
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	if _, err := New(0, 0); err == nil {
		t.Error("expected error for zero count")
	}
	if _, err := New(4, 4); err == nil {
		t.Error("expected error for rank == count")
	}
	if _, err := New(4, -1); err == nil {
		t.Error("expected error for negative rank")
	}
}

func TestAssignFilesSortsBySizeAscending(t *testing.T) {
	a, _ := New(2, 0)
	files := []FileInfo{
		{Path: "big", Size: 300},
		{Path: "small", Size: 100},
		{Path: "mid", Size: 200},
		{Path: "huge", Size: 400},
	}
	mine := a.AssignFiles(files)
	// sorted order: small(100,pos0) mid(200,pos1) big(300,pos2) huge(400,pos3)
	// rank 0 owns positions 0 and 2: small, big
	if len(mine) != 2 || mine[0].Path != "small" || mine[1].Path != "big" {
		t.Errorf("got %+v", mine)
	}
}
