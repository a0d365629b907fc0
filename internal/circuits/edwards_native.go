package circuits

import (
	"fmt"
	"math/big"
)

var curve25519P = Curve25519Fp{}.Modulus()

// DecompressEdwardsPoint recovers the affine (x, y) coordinates of a
// compressed Edwards25519 point, per RFC 8032 §5.1.3. Ed25519Circuit
// does not perform this recovery itself — a modular square root is not
// something gnark's emulated field exposes generically — so callers
// building a witness (tests, the worker) use this to compute the
// RX/AX values the circuit only checks, rather than derives.
func DecompressEdwardsPoint(compressed [32]byte) (x, y *big.Int, err error) {
	sign := compressed[31] >> 7
	masked := compressed
	masked[31] &= 0x7f

	reversed := make([]byte, 32)
	for i, b := range masked {
		reversed[31-i] = b
	}
	y = new(big.Int).SetBytes(reversed)
	p := curve25519P
	if y.Cmp(p) >= 0 {
		return nil, nil, fmt.Errorf("circuits: y coordinate out of range")
	}

	one := big.NewInt(1)
	y2 := new(big.Int).Mul(y, y)
	y2.Mod(y2, p)

	num := new(big.Int).Sub(y2, one)
	num.Mod(num, p)

	den := new(big.Int).Mul(edwardsD, y2)
	den.Add(den, one)
	den.Mod(den, p)

	denInv := new(big.Int).ModInverse(den, p)
	if denInv == nil {
		return nil, nil, fmt.Errorf("circuits: curve denominator not invertible")
	}
	x2 := new(big.Int).Mul(num, denInv)
	x2.Mod(x2, p)

	// p = 5 mod 8, so a candidate square root is x2^((p+3)/8); RFC 8032
	// §5.1.3's fixup multiplies by sqrt(-1) when the first candidate's
	// square lands on -x2 instead of x2.
	exp := new(big.Int).Add(p, big.NewInt(3))
	exp.Rsh(exp, 3)
	cand := new(big.Int).Exp(x2, exp, p)

	square := new(big.Int).Mul(cand, cand)
	square.Mod(square, p)
	if square.Cmp(x2) != 0 {
		sqrtM1Exp := new(big.Int).Sub(p, one)
		sqrtM1Exp.Rsh(sqrtM1Exp, 2)
		sqrtM1 := new(big.Int).Exp(big.NewInt(2), sqrtM1Exp, p)
		cand.Mul(cand, sqrtM1)
		cand.Mod(cand, p)

		square.Mul(cand, cand)
		square.Mod(square, p)
		if square.Cmp(x2) != 0 {
			return nil, nil, fmt.Errorf("circuits: compressed point is not on the curve")
		}
	}

	if cand.Sign() == 0 && sign == 1 {
		return nil, nil, fmt.Errorf("circuits: invalid sign bit for x = 0")
	}
	if new(big.Int).And(cand, one).Uint64() != uint64(sign) {
		cand = cand.Sub(p, cand)
	}
	return cand, y, nil
}
