package unionfind

import "testing"

func TestFindInitializesSelf(t *testing.T) {
	uf := New(5)
	if uf.Find(3) != 3 {
		t.Fatal("expected find(3) == 3 on first use")
	}
}

func TestUnionMergesSets(t *testing.T) {
	uf := New(5)
	uf.Union(0, 1)
	if uf.Find(0) != uf.Find(1) {
		t.Fatal("expected 0 and 1 to share a representative")
	}
}

func TestUnionWeightedLargerBecomesRoot(t *testing.T) {
	uf := New(10)
	uf.Union(0, 1)
	uf.Union(0, 2)
	rLarge := uf.Find(0)

	uf.Find(5)
	root := uf.Union(0, 5)

	if root != rLarge {
		t.Fatalf("expected larger set's rep %d to win, got %d", rLarge, root)
	}
	if uf.Find(5) != rLarge {
		t.Fatal("5 should now share the larger set's representative")
	}
}

func TestSetSizeCorrect(t *testing.T) {
	uf := New(5)
	if uf.SetSize(0) != 1 {
		t.Fatal("expected singleton size 1")
	}
	uf.Union(0, 1)
	if uf.SetSize(0) != 2 || uf.SetSize(1) != 2 {
		t.Fatal("expected size 2 after union")
	}
	uf.Union(0, 2)
	if uf.SetSize(0) != 3 {
		t.Fatal("expected size 3 after second union")
	}
}

func TestPathHalvingWorks(t *testing.T) {
	uf := New(10)
	uf.Union(0, 1)
	uf.Union(1, 2)
	uf.Union(2, 3)

	root := uf.Find(0)
	if uf.Find(0) != root || uf.Find(1) != root || uf.Find(2) != root || uf.Find(3) != root {
		t.Fatal("expected all four elements to share the same root")
	}
}

func TestDisjointSetsStaySeparate(t *testing.T) {
	uf := New(4)
	uf.Union(0, 1)
	uf.Union(2, 3)
	if uf.Find(0) == uf.Find(2) {
		t.Fatal("expected disjoint sets to remain separate")
	}
}

func TestUnionSameSetReturnsRep(t *testing.T) {
	uf := New(3)
	uf.Union(0, 1)
	r := uf.Find(0)
	if uf.Union(0, 1) != r {
		t.Fatal("re-union of the same set should return the existing representative")
	}
}
