package compression

import (
	"bytes"
	"strings"
	"testing"
)

func sampleBody() []byte {
	// Repetitive JSON compresses well, like a real /users/track batch.
	var b strings.Builder
	for i := 0; i < 75; i++ {
		b.WriteString(`{"external_id":"user-1","name":"account created","time":"2022-03-28T00:00:00.000Z"},`)
	}
	return []byte(b.String())
}

func TestGzipRoundTrip(t *testing.T) {
	comp, err := NewCompressor(&Config{Algorithm: Gzip, Level: Default})
	if err != nil {
		t.Fatal(err)
	}

	data := sampleBody()
	compressed, err := comp.Compress(data)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if len(compressed) >= len(data) {
		t.Errorf("compressed %d bytes >= original %d", len(compressed), len(data))
	}

	restored, err := comp.Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(restored, data) {
		t.Error("round trip mismatch")
	}
}

func TestGzipLevels(t *testing.T) {
	data := sampleBody()

	for _, level := range []Level{Fastest, Default, Best} {
		comp, err := NewCompressor(&Config{Algorithm: Gzip, Level: level})
		if err != nil {
			t.Fatalf("level %d: %v", level, err)
		}
		compressed, err := comp.Compress(data)
		if err != nil {
			t.Fatalf("level %d: %v", level, err)
		}
		restored, err := comp.Decompress(compressed)
		if err != nil {
			t.Fatalf("level %d: %v", level, err)
		}
		if !bytes.Equal(restored, data) {
			t.Errorf("level %d: round trip mismatch", level)
		}
	}
}

func TestNoneCompressor(t *testing.T) {
	comp, err := NewCompressor(&Config{Algorithm: None})
	if err != nil {
		t.Fatal(err)
	}

	data := []byte(`{"event":"Braze Sessions"}`)
	out, err := comp.Compress(data)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Error("none compressor should pass data through")
	}
}

func TestUnsupportedAlgorithm(t *testing.T) {
	if _, err := NewCompressor(&Config{Algorithm: "zstd"}); err == nil {
		t.Error("expected error for unsupported algorithm")
	}
}

func TestCompressorPool(t *testing.T) {
	pool := NewCompressorPool(nil)
	data := sampleBody()

	for i := 0; i < 10; i++ {
		compressed, err := pool.Compress(data)
		if err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
		restored, err := pool.Decompress(compressed)
		if err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
		if !bytes.Equal(restored, data) {
			t.Fatalf("iteration %d: round trip mismatch", i)
		}
	}
}

func TestStreamRoundTrip(t *testing.T) {
	comp, err := NewCompressor(&Config{Algorithm: Gzip, Level: Default})
	if err != nil {
		t.Fatal(err)
	}

	data := sampleBody()
	var compressed bytes.Buffer
	if err := comp.CompressStream(&compressed, bytes.NewReader(data)); err != nil {
		t.Fatalf("CompressStream: %v", err)
	}

	var restored bytes.Buffer
	if err := comp.DecompressStream(&restored, &compressed); err != nil {
		t.Fatalf("DecompressStream: %v", err)
	}
	if !bytes.Equal(restored.Bytes(), data) {
		t.Error("stream round trip mismatch")
	}
}

func BenchmarkGzipCompress(b *testing.B) {
	pool := NewCompressorPool(nil)
	data := sampleBody()
	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := pool.Compress(data); err != nil {
			b.Fatal(err)
		}
	}
}
