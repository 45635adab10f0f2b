package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// DigestLen is the length of a lowercase hex sha256 digest.
const DigestLen = 64

var (
	ErrEmptyTree     = errors.New("empty merkle tree")
	ErrInvalidDigest = errors.New("invalid hex digest")
	ErrInvalidIndex  = errors.New("invalid leaf index")
	ErrInvalidProof  = errors.New("invalid inclusion proof")
)

// NodeHash combines two hex digests into their parent digest. The tree is
// built level by level; an odd node at the end of a level is paired with
// itself, so the root of a given ordered leaf set is reproducible
// bit-for-bit.
func NodeHash(left, right string) string {
	sum := sha256.Sum256([]byte(left + right))
	return hex.EncodeToString(sum[:])
}

// Root computes the merkle root of an ordered set of hex digests.
func Root(leaves []string) (string, error) {
	level, err := validateLeaves(leaves)
	if err != nil {
		return "", err
	}
	for len(level) > 1 {
		level = nextLevel(level)
	}
	return level[0], nil
}

// Step is one sibling digest on an inclusion path.
type Step struct {
	Digest string
	Left   bool // sibling sits to the left of the running hash
}

// InclusionProof returns the sibling path proving leaves[index] is included
// under Root(leaves).
func InclusionProof(leaves []string, index int) ([]Step, error) {
	level, err := validateLeaves(leaves)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(level) {
		return nil, ErrInvalidIndex
	}

	var path []Step
	for len(level) > 1 {
		sibling := index ^ 1
		if sibling >= len(level) {
			sibling = index // odd node pairs with itself
		}
		path = append(path, Step{Digest: level[sibling], Left: sibling < index})
		level = nextLevel(level)
		index /= 2
	}
	return path, nil
}

// VerifyInclusion replays an inclusion path and compares against the
// expected root.
func VerifyInclusion(leaf string, path []Step, expectedRoot string) (bool, error) {
	if err := validateDigest(leaf); err != nil {
		return false, err
	}
	if err := validateDigest(expectedRoot); err != nil {
		return false, err
	}
	hash := leaf
	for _, step := range path {
		if err := validateDigest(step.Digest); err != nil {
			return false, fmt.Errorf("%w: %v", ErrInvalidProof, err)
		}
		if step.Left {
			hash = NodeHash(step.Digest, hash)
		} else {
			hash = NodeHash(hash, step.Digest)
		}
	}
	return hash == expectedRoot, nil
}

func nextLevel(level []string) []string {
	next := make([]string, 0, (len(level)+1)/2)
	for i := 0; i < len(level); i += 2 {
		right := level[i]
		if i+1 < len(level) {
			right = level[i+1]
		}
		next = append(next, NodeHash(level[i], right))
	}
	return next
}

func validateLeaves(leaves []string) ([]string, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyTree
	}
	out := make([]string, len(leaves))
	for i, leaf := range leaves {
		if err := validateDigest(leaf); err != nil {
			return nil, fmt.Errorf("leaf %d: %w", i, err)
		}
		out[i] = leaf
	}
	return out, nil
}

func validateDigest(digest string) error {
	if len(digest) != DigestLen {
		return ErrInvalidDigest
	}
	for _, c := range digest {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return ErrInvalidDigest
		}
	}
	return nil
}
