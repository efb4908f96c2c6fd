package checksum

import "testing"

func TestShortID(t *testing.T) {
	// sha1("abc") = a9993e364706816aba3e25717850c26c9cd0d89d
	if got := ShortID("abc"); got != "a9993e364706" {
		t.Errorf("ShortID(abc) = %q", got)
	}
	if len(ShortID("")) != IDLength {
		t.Errorf("len = %d, want %d", len(ShortID("")), IDLength)
	}
}

func TestSum(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := Sum([]byte("abc")); got != want {
		t.Errorf("Sum(abc) = %q", got)
	}
}
