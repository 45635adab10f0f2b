package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
)

func leafDigest(i int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("leaf-%d", i)))
	return hex.EncodeToString(sum[:])
}

func digests(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = leafDigest(i)
	}
	return out
}

func TestRoot_Deterministic(t *testing.T) {
	for _, n := range []int{1, 2, 3, 7, 8, 1000} {
		leaves := digests(n)
		first, err := Root(leaves)
		if err != nil {
			t.Fatalf("root n=%d: %v", n, err)
		}
		second, err := Root(digests(n))
		if err != nil {
			t.Fatalf("root n=%d: %v", n, err)
		}
		if first != second {
			t.Fatalf("n=%d: roots differ: %s vs %s", n, first, second)
		}
		if len(first) != DigestLen {
			t.Fatalf("n=%d: root length %d", n, len(first))
		}
	}
}

func TestRoot_SingleLeaf(t *testing.T) {
	leaf := leafDigest(0)
	root, err := Root([]string{leaf})
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	if root != leaf {
		t.Fatalf("single-leaf root should be the leaf itself")
	}
}

func TestRoot_OddLeafPairsWithItself(t *testing.T) {
	leaves := digests(3)
	root, err := Root(leaves)
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	want := NodeHash(NodeHash(leaves[0], leaves[1]), NodeHash(leaves[2], leaves[2]))
	if root != want {
		t.Fatalf("root %s, want %s", root, want)
	}
}

func TestRoot_FlippedLeafChangesRoot(t *testing.T) {
	leaves := digests(8)
	original, err := Root(leaves)
	if err != nil {
		t.Fatalf("root: %v", err)
	}

	mutated := digests(8)
	flipped := []byte(mutated[3])
	if flipped[0] == 'a' {
		flipped[0] = 'b'
	} else {
		flipped[0] = 'a'
	}
	mutated[3] = string(flipped)

	changed, err := Root(mutated)
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	if changed == original {
		t.Fatalf("flipping a leaf did not change the root")
	}
}

func TestRoot_RejectsBadLeaves(t *testing.T) {
	cases := [][]string{
		nil,
		{},
		{"not-a-digest"},
		{leafDigest(0)[:63]},
		{leafDigest(0) + "0"},
		{"ABCDEF" + leafDigest(0)[6:]}, // uppercase hex rejected
	}
	for i, leaves := range cases {
		if _, err := Root(leaves); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestInclusionProof_Verifies(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 8, 33} {
		leaves := digests(n)
		root, err := Root(leaves)
		if err != nil {
			t.Fatalf("root n=%d: %v", n, err)
		}
		for index := 0; index < n; index++ {
			path, err := InclusionProof(leaves, index)
			if err != nil {
				t.Fatalf("proof n=%d index=%d: %v", n, index, err)
			}
			ok, err := VerifyInclusion(leaves[index], path, root)
			if err != nil {
				t.Fatalf("verify n=%d index=%d: %v", n, index, err)
			}
			if !ok {
				t.Fatalf("n=%d index=%d: proof did not verify", n, index)
			}
		}
	}
}

func TestInclusionProof_WrongLeafFails(t *testing.T) {
	leaves := digests(8)
	root, err := Root(leaves)
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	path, err := InclusionProof(leaves, 2)
	if err != nil {
		t.Fatalf("proof: %v", err)
	}
	ok, err := VerifyInclusion(leaves[3], path, root)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatalf("proof for leaf 2 verified against leaf 3")
	}
}

func TestInclusionProof_InvalidIndex(t *testing.T) {
	leaves := digests(4)
	if _, err := InclusionProof(leaves, -1); err == nil {
		t.Fatalf("expected error for negative index")
	}
	if _, err := InclusionProof(leaves, 4); err == nil {
		t.Fatalf("expected error for out-of-range index")
	}
}
