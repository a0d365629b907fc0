package hashshape

import "testing"

func TestSha256BlockCount(t *testing.T) {
	cases := map[int]int{
		0:   1,
		447: 1,
		448: 2,
		800: 2,
	}
	for msgLenBits, want := range cases {
		if got := Sha256BlockCount(msgLenBits); got != want {
			t.Errorf("Sha256BlockCount(%d) = %d, want %d", msgLenBits, got, want)
		}
	}
}

func TestSha512BlockCount(t *testing.T) {
	cases := map[int]int{
		0:    1,
		895:  1,
		896:  2,
		1800: 2,
	}
	for msgLenBits, want := range cases {
		if got := Sha512BlockCount(msgLenBits); got != want {
			t.Errorf("Sha512BlockCount(%d) = %d, want %d", msgLenBits, got, want)
		}
	}
}
