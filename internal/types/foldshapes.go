package types

import "fmt"

// FoldLegShapes computes the two child shapes a ShapeRecursion node
// folds, from its Step/NumSignatures/SigMsgLenBits/NumValidators/
// DigestPreimageLen fields (spec.md §4.G's reduce step, generalized to
// the heterogeneous stake/block-data/digest composition spec.md §9
// adds on top of the signature leaves).
//
// The chain is sequential, never a balanced tree: step 1 pairs the
// first two signature leaves (or, when there is only one signature,
// the lone leaf against the stake-threshold proof); each later step
// folds the previous step's accumulator against the next leaf in
// order. The final three steps compose the accumulator against
// StakeThreshold, BlockData and the bp_hash digest circuit, in that
// fixed order. FinalStep reports which step produces the job's
// output proof.
func FoldLegShapes(shape Shape) (legA, legB Shape, err error) {
	if shape.Kind != ShapeRecursion {
		return Shape{}, Shape{}, fmt.Errorf("types: FoldLegShapes called on non-recursion shape %+v", shape)
	}

	n := shape.NumSignatures
	step := shape.Step

	accumulator := func(s int) Shape {
		return Shape{
			Kind:              ShapeRecursion,
			Step:              s,
			NumSignatures:     n,
			SigMsgLenBits:     shape.SigMsgLenBits,
			NumValidators:     shape.NumValidators,
			DigestPreimageLen: shape.DigestPreimageLen,
		}
	}
	sigLeaf := Shape{Kind: ShapeEd25519, MsgLenBits: shape.SigMsgLenBits}
	stakeLeaf := Shape{Kind: ShapeStakeThreshold, ByteLen: shape.NumValidators}
	blockLeaf := Shape{Kind: ShapeBlockData}
	digestLeaf := Shape{Kind: ShapeSha256, ByteLen: shape.DigestPreimageLen}

	if n <= 1 {
		switch step {
		case 1:
			return sigLeaf, stakeLeaf, nil
		case 2:
			return accumulator(1), blockLeaf, nil
		case 3:
			return accumulator(2), digestLeaf, nil
		default:
			return Shape{}, Shape{}, fmt.Errorf("types: step %d out of range for a %d-signature chain", step, n)
		}
	}

	switch {
	case step == 1:
		return sigLeaf, sigLeaf, nil
	case step > 1 && step <= n-1:
		return accumulator(step - 1), sigLeaf, nil
	case step == n:
		return accumulator(n - 1), stakeLeaf, nil
	case step == n+1:
		return accumulator(n), blockLeaf, nil
	case step == n+2:
		return accumulator(n + 1), digestLeaf, nil
	default:
		return Shape{}, Shape{}, fmt.Errorf("types: step %d out of range for a %d-signature chain", step, n)
	}
}

// FinalStep returns the step number of the last fold in a chain of
// numSignatures signature proofs — the step whose output is the job's
// final reduced proof.
func FinalStep(numSignatures int) int {
	if numSignatures <= 1 {
		return 3
	}
	return numSignatures + 2
}
