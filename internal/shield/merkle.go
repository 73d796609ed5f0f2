// merkle.go - Fixed-depth incremental Merkle accumulator over field elements.
//
// Leaves are commitments in insertion order. The tree is append-only; spent
// outputs stay in place and spentness is tracked out-of-band via nullifiers.
// Absent siblings fall back to the per-level zero constants, so unused
// subtrees are never materialized.

package shield

import (
	"fmt"
	"math/big"
)

// DefaultTreeDepth is the depth the transaction circuit is compiled for.
const DefaultTreeDepth = 26

// MerkleTree is a fixed-depth binary MiMC tree.
type MerkleTree struct {
	levels   int
	capacity uint64
	zeros    []*big.Int   // zeros[i] is the root of an empty subtree of height i
	layers   [][]*big.Int // layers[0] holds the leaves
}

// NewMerkleTree builds an empty tree of the given depth.
func NewMerkleTree(levels int) *MerkleTree {
	zeros := make([]*big.Int, levels+1)
	zeros[0] = big.NewInt(0)
	for i := 1; i <= levels; i++ {
		zeros[i] = Hash(zeros[i-1], zeros[i-1])
	}
	layers := make([][]*big.Int, levels+1)
	for i := range layers {
		layers[i] = []*big.Int{}
	}
	return &MerkleTree{
		levels:   levels,
		capacity: 1 << uint(levels),
		zeros:    zeros,
		layers:   layers,
	}
}

// Levels returns the tree depth.
func (t *MerkleTree) Levels() int { return t.levels }

// Capacity returns the maximum number of leaves.
func (t *MerkleTree) Capacity() uint64 { return t.capacity }

// NextIndex returns the index the next insert will occupy.
func (t *MerkleTree) NextIndex() uint64 { return uint64(len(t.layers[0])) }

// Root returns the current root, or the empty-tree constant.
func (t *MerkleTree) Root() *big.Int {
	if len(t.layers[t.levels]) == 0 {
		return new(big.Int).Set(t.zeros[t.levels])
	}
	return new(big.Int).Set(t.layers[t.levels][0])
}

// Insert appends a leaf and returns its index.
func (t *MerkleTree) Insert(leaf *big.Int) (uint64, error) {
	index := uint64(len(t.layers[0]))
	if index >= t.capacity {
		return 0, ErrTreeFull
	}
	if err := t.Update(index, leaf); err != nil {
		return 0, err
	}
	return index, nil
}

// Update overwrites the leaf at index and recomputes its ancestors.
// O(levels): only the path to the root is rehashed.
func (t *MerkleTree) Update(index uint64, leaf *big.Int) error {
	if index >= t.capacity {
		return &MerkleProofError{Reason: fmt.Sprintf("index %d out of bounds", index)}
	}
	for uint64(len(t.layers[0])) <= index {
		t.layers[0] = append(t.layers[0], new(big.Int).Set(t.zeros[0]))
	}
	t.layers[0][index] = new(big.Int).Set(leaf)

	idx := index
	for level := 1; level <= t.levels; level++ {
		idx >>= 1
		left := t.node(level-1, idx*2)
		right := t.node(level-1, idx*2+1)
		h := Hash(left, right)
		for uint64(len(t.layers[level])) <= idx {
			t.layers[level] = append(t.layers[level], new(big.Int).Set(t.zeros[level]))
		}
		t.layers[level][idx] = h
	}
	return nil
}

// BulkInsert appends leaves and rebuilds every upper layer.
// Cheaper than per-leaf updates when the batch is a large share of the tree.
func (t *MerkleTree) BulkInsert(leaves []*big.Int) error {
	if uint64(len(t.layers[0])+len(leaves)) > t.capacity {
		return ErrTreeFull
	}
	for _, leaf := range leaves {
		t.layers[0] = append(t.layers[0], new(big.Int).Set(leaf))
	}
	for level := 1; level <= t.levels; level++ {
		prev := t.layers[level-1]
		pairs := (len(prev) + 1) / 2
		layer := make([]*big.Int, 0, pairs)
		for i := 0; i < pairs; i++ {
			left := t.node(level-1, uint64(i*2))
			right := t.node(level-1, uint64(i*2+1))
			layer = append(layer, Hash(left, right))
		}
		t.layers[level] = layer
	}
	return nil
}

// Path returns the inclusion path for the leaf at index.
func (t *MerkleTree) Path(index uint64) (*MerklePath, error) {
	if index >= uint64(len(t.layers[0])) {
		return nil, &MerkleProofError{Reason: fmt.Sprintf("index %d out of bounds", index)}
	}
	elements := make([]*big.Int, t.levels)
	indices := make([]int, t.levels)
	idx := index
	for level := 0; level < t.levels; level++ {
		indices[level] = int(idx & 1)
		elements[level] = t.node(level, idx^1)
		idx >>= 1
	}
	return &MerklePath{Elements: elements, Indices: indices}, nil
}

func (t *MerkleTree) node(level int, idx uint64) *big.Int {
	if idx < uint64(len(t.layers[level])) {
		return t.layers[level][idx]
	}
	return t.zeros[level]
}

// ZeroPath returns the all-zero path used for dummy inputs, which have no
// real tree position. The circuit accepts it as non-binding for zero amounts.
func ZeroPath(levels int) *MerklePath {
	elements := make([]*big.Int, levels)
	indices := make([]int, levels)
	for i := range elements {
		elements[i] = big.NewInt(0)
	}
	return &MerklePath{Elements: elements, Indices: indices}
}

// MerklePath is an inclusion proof: sibling elements leaf-to-root and, per
// level, whether the node is the left (0) or right (1) child.
type MerklePath struct {
	Elements []*big.Int
	Indices  []int
}

// Verify rehashes the leaf along the path and compares with the expected root.
func (p *MerklePath) Verify(leaf, expectedRoot *big.Int) bool {
	cur := new(big.Int).Set(leaf)
	for i, sibling := range p.Elements {
		if p.Indices[i] == 0 {
			cur = Hash(cur, sibling)
		} else {
			cur = Hash(sibling, cur)
		}
	}
	return cur.Cmp(expectedRoot) == 0
}
