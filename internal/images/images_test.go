package images

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/newsdesk/internal/apperr"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 200})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func TestEncodeDownscales(t *testing.T) {
	tc := NewTranscoder(100, 100)
	out, err := tc.Encode(pngBytes(t, 400, 200), 85)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not JPEG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 50 {
		t.Errorf("size = %dx%d, want 100x50", b.Dx(), b.Dy())
	}
}

func TestEncodeKeepsSmallImages(t *testing.T) {
	tc := NewTranscoder(1280, 1280)
	out, err := tc.Encode(pngBytes(t, 30, 20), 0)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	if cfg.Width != 30 || cfg.Height != 20 {
		t.Errorf("size = %dx%d", cfg.Width, cfg.Height)
	}
}

func TestEncodeRejectsNonImages(t *testing.T) {
	tc := NewTranscoder(0, 0)
	for _, in := range [][]byte{[]byte("hello world"), []byte("%PDF-1.4\n"), {0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0}} {
		if _, err := tc.Encode(in, 85); !errors.Is(err, apperr.ErrTranscode) {
			t.Errorf("Encode(%q) err = %v, want ErrTranscode", in, err)
		}
	}
}

// withDimensions rewrites the IHDR size of a PNG and fixes its checksum.
func withDimensions(data []byte, w, h uint32) []byte {
	out := append([]byte{}, data...)
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestEncodeRejectsOversizedSource(t *testing.T) {
	tc := NewTranscoder(1280, 1280)
	huge := withDimensions(pngBytes(t, 2, 2), 60000, 60000)
	_, err := tc.Encode(huge, 85)
	if !errors.Is(err, apperr.ErrTranscode) || !strings.Contains(err.Error(), "pixel limit") {
		t.Fatalf("err = %v, want pixel limit ErrTranscode", err)
	}

	tc.MaxPixels = 100
	if _, err := tc.Encode(pngBytes(t, 20, 20), 85); !errors.Is(err, apperr.ErrTranscode) {
		t.Errorf("20x20 above limit 100: err = %v", err)
	}
	if _, err := tc.Encode(pngBytes(t, 10, 10), 85); err != nil {
		t.Errorf("10x10 within limit: %v", err)
	}
}

func TestFit(t *testing.T) {
	cases := []struct{ w, h, mw, mh, ww, wh int }{
		{2560, 1440, 1280, 1280, 1280, 720},
		{1000, 3000, 1280, 1280, 427, 1280},
		{10, 10, 1280, 1280, 10, 10},
		{500, 500, 0, 100, 100, 100},
	}
	for _, c := range cases {
		w, h := fit(c.w, c.h, c.mw, c.mh)
		if w != c.ww || h != c.wh {
			t.Errorf("fit(%d,%d,%d,%d) = %d,%d want %d,%d", c.w, c.h, c.mw, c.mh, w, h, c.ww, c.wh)
		}
	}
}

type memSink struct {
	mu    sync.Mutex
	items map[string][]byte
	puts  int
}

func (m *memSink) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[key]
	return ok, nil
}

func (m *memSink) Put(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = data
	m.puts++
	return nil
}

func (m *memSink) URL(key string) string { return "https://cdn.test/" + key }

func TestUploadSkipsExisting(t *testing.T) {
	sink := &memSink{items: map[string][]byte{}}
	now := func() time.Time { return time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC) }
	u := NewUploader(sink, NewTranscoder(1280, 1280), UploaderConfig{Folder: "images", Quality: 85}, now, nil)

	data := pngBytes(t, 40, 40)
	first, err := u.Upload(context.Background(), "Hello World", "cover.png", data)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if first.Skipped || !strings.HasPrefix(first.Path, "images/2025/04/hello-world-") || !strings.HasSuffix(first.Path, ".jpg") {
		t.Errorf("first = %+v", first)
	}
	if first.URL != "https://cdn.test/"+first.Path {
		t.Errorf("url = %q", first.URL)
	}

	second, err := u.Upload(context.Background(), "Hello World", "cover.png", []byte("not even an image"))
	if err != nil {
		t.Fatalf("second Upload: %v", err)
	}
	if !second.Skipped || second.Path != first.Path {
		t.Errorf("second = %+v", second)
	}
	if sink.puts != 1 {
		t.Errorf("puts = %d, want 1", sink.puts)
	}
}

func TestUploadTranscodeError(t *testing.T) {
	sink := &memSink{items: map[string][]byte{}}
	u := NewUploader(sink, NewTranscoder(0, 0), UploaderConfig{Folder: "images"}, nil, nil)
	if _, err := u.Upload(context.Background(), "t", "x.txt", []byte("plain text")); !errors.Is(err, apperr.ErrTranscode) {
		t.Errorf("err = %v", err)
	}
	if sink.puts != 0 {
		t.Errorf("puts = %d", sink.puts)
	}
}

func TestS3SinkURL(t *testing.T) {
	s, err := NewS3Sink(S3Config{Endpoint: "localhost:9000", Bucket: "media"})
	if err != nil {
		t.Fatalf("NewS3Sink: %v", err)
	}
	if got := s.URL("images/a.jpg"); got != "http://localhost:9000/media/images/a.jpg" {
		t.Errorf("URL = %q", got)
	}
}
