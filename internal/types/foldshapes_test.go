package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFoldLegShapesSingleSignatureChain(t *testing.T) {
	base := Shape{Kind: ShapeRecursion, NumSignatures: 1, SigMsgLenBits: 328, NumValidators: 4, DigestPreimageLen: 64}

	legA, legB, err := FoldLegShapes(shapeAtStep(base, 1))
	require.NoError(t, err)
	require.Equal(t, Shape{Kind: ShapeEd25519, MsgLenBits: 328}, legA)
	require.Equal(t, Shape{Kind: ShapeStakeThreshold, ByteLen: 4}, legB)

	legA, legB, err = FoldLegShapes(shapeAtStep(base, 2))
	require.NoError(t, err)
	require.Equal(t, 1, legA.Step)
	require.Equal(t, Shape{Kind: ShapeBlockData}, legB)

	legA, legB, err = FoldLegShapes(shapeAtStep(base, 3))
	require.NoError(t, err)
	require.Equal(t, 2, legA.Step)
	require.Equal(t, Shape{Kind: ShapeSha256, ByteLen: 64}, legB)

	require.Equal(t, 3, FinalStep(1))

	_, _, err = FoldLegShapes(shapeAtStep(base, 4))
	require.Error(t, err)
}

func TestFoldLegShapesMultiSignatureChain(t *testing.T) {
	base := Shape{Kind: ShapeRecursion, NumSignatures: 3, SigMsgLenBits: 328, NumValidators: 10, DigestPreimageLen: 64}

	legA, legB, err := FoldLegShapes(shapeAtStep(base, 1))
	require.NoError(t, err)
	require.Equal(t, Shape{Kind: ShapeEd25519, MsgLenBits: 328}, legA)
	require.Equal(t, legA, legB)

	legA, legB, err = FoldLegShapes(shapeAtStep(base, 2))
	require.NoError(t, err)
	require.Equal(t, 1, legA.Step)
	require.Equal(t, Shape{Kind: ShapeEd25519, MsgLenBits: 328}, legB)

	legA, legB, err = FoldLegShapes(shapeAtStep(base, 3))
	require.NoError(t, err)
	require.Equal(t, 2, legA.Step)
	require.Equal(t, Shape{Kind: ShapeStakeThreshold, ByteLen: 10}, legB)

	legA, legB, err = FoldLegShapes(shapeAtStep(base, 4))
	require.NoError(t, err)
	require.Equal(t, 3, legA.Step)
	require.Equal(t, Shape{Kind: ShapeBlockData}, legB)

	legA, legB, err = FoldLegShapes(shapeAtStep(base, 5))
	require.NoError(t, err)
	require.Equal(t, 4, legA.Step)
	require.Equal(t, Shape{Kind: ShapeSha256, ByteLen: 64}, legB)

	require.Equal(t, 5, FinalStep(3))
}

func TestFoldLegShapesRejectsNonRecursionShape(t *testing.T) {
	_, _, err := FoldLegShapes(Shape{Kind: ShapeEd25519})
	require.Error(t, err)
}

func shapeAtStep(base Shape, step int) Shape {
	base.Step = step
	return base
}
