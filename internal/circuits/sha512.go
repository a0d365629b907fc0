package circuits

import (
	"encoding/binary"
	"fmt"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/math/uints"
)

// sha512RoundConstants are the first 64 bits of the fractional parts of
// the cube roots of the first 80 primes (FIPS 180-4 §4.2.3).
var sha512RoundConstants = [80]uint64{
	0x428a2f98d728ae22, 0x7137449123ef65cd, 0xb5c0fbcfec4d3b2f, 0xe9b5dba58189dbbc,
	0x3956c25bf348b538, 0x59f111f1b605d019, 0x923f82a4af194f9b, 0xab1c5ed5da6d8118,
	0xd807aa98a3030242, 0x12835b0145706fbe, 0x243185be4ee4b28c, 0x550c7dc3d5ffb4e2,
	0x72be5d74f27b896f, 0x80deb1fe3b1696b1, 0x9bdc06a725c71235, 0xc19bf174cf692694,
	0xe49b69c19ef14ad2, 0xefbe4786384f25e3, 0x0fc19dc68b8cd5b5, 0x240ca1cc77ac9c65,
	0x2de92c6f592b0275, 0x4a7484aa6ea6e483, 0x5cb0a9dcbd41fbd4, 0x76f988da831153b5,
	0x983e5152ee66dfab, 0xa831c66d2db43210, 0xb00327c898fb213f, 0xbf597fc7beef0ee4,
	0xc6e00bf33da88fc2, 0xd5a79147930aa725, 0x06ca6351e003826f, 0x142929670a0e6e70,
	0x27b70a8546d22ffc, 0x2e1b21385c26c926, 0x4d2c6dfc5ac42aed, 0x53380d139d95b3df,
	0x650a73548baf63de, 0x766a0abb3c77b2a8, 0x81c2c92e47edaee6, 0x92722c851482353b,
	0xa2bfe8a14cf10364, 0xa81a664bbc423001, 0xc24b8b70d0f89791, 0xc76c51a30654be30,
	0xd192e819d6ef5218, 0xd69906245565a910, 0xf40e35855771202a, 0x106aa07032bbd1b8,
	0x19a4c116b8d2d0c8, 0x1e376c085141ab53, 0x2748774cdf8eeb99, 0x34b0bcb5e19b48a8,
	0x391c0cb3c5c95a63, 0x4ed8aa4ae3418acb, 0x5b9cca4f7763e373, 0x682e6ff3d6b2b8a3,
	0x748f82ee5defb2fc, 0x78a5636f43172f60, 0x84c87814a1f0ab72, 0x8cc702081a6439ec,
	0x90befffa23631e28, 0xa4506cebde82bde9, 0xbef9a3f7b2c67915, 0xc67178f2e372532b,
	0xca273eceea26619c, 0xd186b8c721c0c207, 0xeada7dd6cde0eb1e, 0xf57d4f7fee6ed178,
	0x06f067aa72176fba, 0x0a637dc5a2c898a6, 0x113f9804bef90dae, 0x1b710b35131c471b,
	0x28db77f523047d84, 0x32caab7b40c72493, 0x3c9ebe0a15c9bebc, 0x431d67c49c100d4c,
	0x4cc5d4becb3e42b6, 0x597f299cfc657e2a, 0x5fcb6fab3ad6faec, 0x6c44198c4a475817,
}

// sha512InitialState is H0..H7 (FIPS 180-4 §5.3.5).
var sha512InitialState = [8]uint64{
	0x6a09e667f3bcc908, 0xbb67ae8584caa73b, 0x3c6ef372fe94f82b, 0xa54ff53a5f1d36f1,
	0x510e527fade682d1, 0x9b05688c2b3e6c1f, 0x1f83d9abfb41bd6b, 0x5be0cd19137e2179,
}

// word64 is a 64-bit word carried as its bit decomposition, least
// significant bit first — the convention frontend.API.ToBinary and
// FromBinary already use, so rotations and shifts are plain index
// arithmetic and no extra gates are spent converting between the two.
type word64 []frontend.Variable

func constWord64(v uint64) word64 {
	bits := make([]frontend.Variable, 64)
	for i := range bits {
		bits[i] = (v >> uint(i)) & 1
	}
	return bits
}

// bytesToWord64 packs 8 big-endian input bytes (SHA's native word order)
// into a word64.
func bytesToWord64(api frontend.API, b []uints.U8) word64 {
	bits := make([]frontend.Variable, 0, 64)
	for i := 7; i >= 0; i-- {
		bits = append(bits, api.ToBinary(b[i].Val, 8)...)
	}
	return bits
}

// word64ToBytes unpacks a word64 back into 8 big-endian bytes.
func word64ToBytes(api frontend.API, w word64) [8]uints.U8 {
	var out [8]uints.U8
	for i := 0; i < 8; i++ {
		out[7-i] = uints.U8{Val: api.FromBinary(w[i*8 : i*8+8]...)}
	}
	return out
}

func rotr64(w word64, n int) word64 {
	out := make(word64, 64)
	for j := range out {
		out[j] = w[(j+n)%64]
	}
	return out
}

func shr64(w word64, n int) word64 {
	out := make(word64, 64)
	for j := range out {
		if j+n < 64 {
			out[j] = w[j+n]
		} else {
			out[j] = 0
		}
	}
	return out
}

func xor64(api frontend.API, ws ...word64) word64 {
	out := make(word64, 64)
	for j := range out {
		acc := ws[0][j]
		for _, w := range ws[1:] {
			acc = api.Xor(acc, w[j])
		}
		out[j] = acc
	}
	return out
}

func and64(api frontend.API, a, b word64) word64 {
	out := make(word64, 64)
	for j := range out {
		out[j] = api.And(a[j], b[j])
	}
	return out
}

func not64(api frontend.API, a word64) word64 {
	out := make(word64, 64)
	for j := range out {
		out[j] = api.Sub(1, a[j])
	}
	return out
}

// add64mod adds up to a handful of 64-bit words modulo 2^64: the terms
// are reassembled into a single field element (safe — BN254's scalar
// field is far wider than 64*len(ws) bits), then truncated back down to
// the low 64 bits, which is exactly addition mod 2^64.
func add64mod(api frontend.API, ws ...word64) word64 {
	sum := frontend.Variable(0)
	for _, w := range ws {
		sum = api.Add(sum, api.FromBinary(w...))
	}
	return api.ToBinary(sum, 70)[:64]
}

// sha512Sum computes the SHA-512 digest of msg (a fixed-length byte
// slice — each Ed25519Circuit shape bakes in one message length, so
// padding is computed once in Go rather than as in-circuit control
// flow) and returns it as 64 uints.U8, most-significant byte first.
//
// gnark's std/hash package ships no SHA-512 gadget, only SHA-256 and
// Keccak; this hand-rolls the same bit-decomposition technique
// std/hash/sha2 uses internally, extended to 64-bit words and
// SHA-512/FIPS 180-4's 80-round schedule. See hashshape.Sha512BlockCount
// for the companion padding arithmetic used to size message buffers.
func sha512Sum(api frontend.API, msg []uints.U8) ([]uints.U8, error) {
	msgLenBits := uint64(len(msg)) * 8

	padded := make([]uints.U8, len(msg))
	copy(padded, msg)
	padded = append(padded, uints.NewU8(0x80))
	for (len(padded)*8)%1024 != 896 {
		padded = append(padded, uints.NewU8(0))
	}
	var lenField [16]byte
	binary.BigEndian.PutUint64(lenField[8:], msgLenBits)
	for _, b := range lenField {
		padded = append(padded, uints.NewU8(b))
	}
	if (len(padded)*8)%1024 != 0 {
		return nil, fmt.Errorf("sha512 padding invariant violated: %d bits", len(padded)*8)
	}

	kWords := make([]word64, 80)
	for i, k := range sha512RoundConstants {
		kWords[i] = constWord64(k)
	}

	h := make([]word64, 8)
	for i, v := range sha512InitialState {
		h[i] = constWord64(v)
	}

	numBlocks := len(padded) / 128
	for blk := 0; blk < numBlocks; blk++ {
		block := padded[blk*128 : (blk+1)*128]

		w := make([]word64, 80)
		for t := 0; t < 16; t++ {
			w[t] = bytesToWord64(api, block[t*8:(t+1)*8])
		}
		for t := 16; t < 80; t++ {
			s0 := xor64(api, rotr64(w[t-15], 1), rotr64(w[t-15], 8), shr64(w[t-15], 7))
			s1 := xor64(api, rotr64(w[t-2], 19), rotr64(w[t-2], 61), shr64(w[t-2], 6))
			w[t] = add64mod(api, w[t-16], s0, w[t-7], s1)
		}

		a, b, c, d, e, f, g, hh := h[0], h[1], h[2], h[3], h[4], h[5], h[6], h[7]
		for t := 0; t < 80; t++ {
			bigSigma1 := xor64(api, rotr64(e, 14), rotr64(e, 18), rotr64(e, 41))
			ch := xor64(api, and64(api, e, f), and64(api, not64(api, e), g))
			t1 := add64mod(api, hh, bigSigma1, ch, kWords[t], w[t])

			bigSigma0 := xor64(api, rotr64(a, 28), rotr64(a, 34), rotr64(a, 39))
			maj := xor64(api, and64(api, a, b), and64(api, a, c), and64(api, b, c))
			t2 := add64mod(api, bigSigma0, maj)

			hh = g
			g = f
			f = e
			e = add64mod(api, d, t1)
			d = c
			c = b
			b = a
			a = add64mod(api, t1, t2)
		}

		h[0] = add64mod(api, h[0], a)
		h[1] = add64mod(api, h[1], b)
		h[2] = add64mod(api, h[2], c)
		h[3] = add64mod(api, h[3], d)
		h[4] = add64mod(api, h[4], e)
		h[5] = add64mod(api, h[5], f)
		h[6] = add64mod(api, h[6], g)
		h[7] = add64mod(api, h[7], hh)
	}

	digest := make([]uints.U8, 0, 64)
	for _, word := range h {
		wb := word64ToBytes(api, word)
		digest = append(digest, wb[:]...)
	}
	return digest, nil
}
