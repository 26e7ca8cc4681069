package orderbook

import (
	"math/rand"
	"sort"
	"testing"
)

// checkRB verifies the red-black properties and returns the black height.
func checkRB(t *testing.T, tr *RBTree, n *rbNode) int {
	t.Helper()
	if n == tr.nil {
		return 1
	}
	if n.color == red && (n.left.color == red || n.right.color == red) {
		t.Fatalf("red node %d has red child", n.key)
	}
	if n.left != tr.nil && n.left.key >= n.key {
		t.Fatalf("left child %d >= %d", n.left.key, n.key)
	}
	if n.right != tr.nil && n.right.key <= n.key {
		t.Fatalf("right child %d <= %d", n.right.key, n.key)
	}
	lh := checkRB(t, tr, n.left)
	rh := checkRB(t, tr, n.right)
	if lh != rh {
		t.Fatalf("black height mismatch at %d: %d vs %d", n.key, lh, rh)
	}
	if n.color == black {
		return lh + 1
	}
	return lh
}

func TestRBTreeInsertDelete(t *testing.T) {
	tr := NewRBTree()
	r := rand.New(rand.NewSource(7))

	keys := map[uint64]bool{}
	for i := 0; i < 2000; i++ {
		k := uint64(r.Intn(500) + 1)
		tr.GetOrCreate(k)
		keys[k] = true
	}
	if tr.Size() != len(keys) {
		t.Fatalf("size %d, want %d", tr.Size(), len(keys))
	}
	if tr.root.color != black {
		t.Fatal("root must be black")
	}
	checkRB(t, tr, tr.root)

	for k := range keys {
		if k%3 == 0 {
			if !tr.Delete(k) {
				t.Fatalf("delete %d failed", k)
			}
			delete(keys, k)
		}
	}
	checkRB(t, tr, tr.root)

	var want []uint64
	for k := range keys {
		want = append(want, k)
	}
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })

	var got []uint64
	tr.walkAsc(func(l *PriceLevel) bool {
		got = append(got, l.Price)
		return true
	})
	if len(got) != len(want) {
		t.Fatalf("walk returned %d levels, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("walk[%d] = %d, want %d", i, got[i], want[i])
		}
	}

	if tr.BestMin().Price != want[0] || tr.BestMax().Price != want[len(want)-1] {
		t.Error("best min/max disagree with walk")
	}
	if tr.Delete(100000) {
		t.Error("deleting a missing key must report false")
	}
}

func TestRBTreeGetOrCreateReturnsSameLevel(t *testing.T) {
	tr := NewRBTree()
	a := tr.GetOrCreate(120)
	b := tr.GetOrCreate(120)
	if a != b {
		t.Fatal("same price must map to one level")
	}
	if tr.Find(121) != nil {
		t.Fatal("unexpected level")
	}
}
