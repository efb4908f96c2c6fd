package remote

import (
	"errors"
	"testing"

	"github.com/starford/newsdesk/internal/apperr"
)

func TestDecode(t *testing.T) {
	cases := []struct {
		f    File
		want string
	}{
		{File{Content: "[]", Encoding: EncodingNone}, "[]"},
		{File{Content: "W3sidGl0bGUi\nOiJhIn1d\n", Encoding: EncodingBase64}, `[{"title":"a"}]`},
	}
	for _, c := range cases {
		got, err := Decode(&c.f)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if string(got) != c.want {
			t.Errorf("Decode = %q, want %q", got, c.want)
		}
	}
}

func TestDecode_Invalid(t *testing.T) {
	for _, f := range []File{
		{Content: "***", Encoding: EncodingBase64},
		{Content: "x", Encoding: "rot13"},
	} {
		if _, err := Decode(&f); !errors.Is(err, apperr.ErrFormat) {
			t.Errorf("Decode(%+v) err = %v, want ErrFormat", f, err)
		}
	}
}
