package telemetry

import (
	"errors"
	"math"
	"testing"

	"github.com/kestrel-flight/kestrel/internal/domain"
)

// ─── Codec ──────────────────────────────────────────────────────────────────

func TestLayoutSize(t *testing.T) {
	cases := []struct {
		layout string
		want   int
	}{
		{"B", 1},
		{"bB", 2},
		{"hHiI", 12},
		{"qQd", 24},
		{"fff", 12},
		{"QBff", 17},
	}
	for _, c := range cases {
		got, err := LayoutSize(c.layout)
		if err != nil {
			t.Errorf("LayoutSize(%q) error: %v", c.layout, err)
			continue
		}
		if got != c.want {
			t.Errorf("LayoutSize(%q) = %d, want %d", c.layout, got, c.want)
		}
	}
}

func TestLayoutSize_RejectsUnknownChar(t *testing.T) {
	for _, layout := range []string{"", "x", "fBz"} {
		if _, err := LayoutSize(layout); !errors.Is(err, domain.ErrLayoutMismatch) {
			t.Errorf("LayoutSize(%q) error = %v, want ErrLayoutMismatch", layout, err)
		}
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	layout := "QbhfdI"
	in := []float64{123456789, -7, -30000, 1.5, math.Pi, 4000000000}

	buf, err := Encode(layout, in)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	out, err := Decode(layout, buf)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}

	for i := range in {
		if out[i] != in[i] {
			t.Errorf("field %d: %v -> %v", i, in[i], out[i])
		}
	}
}

func TestEncode_ValueCountMismatch(t *testing.T) {
	if _, err := Encode("ff", []float64{1}); !errors.Is(err, domain.ErrLayoutMismatch) {
		t.Errorf("error = %v, want ErrLayoutMismatch", err)
	}
}

func TestDecode_LengthMismatch(t *testing.T) {
	if _, err := Decode("f", []byte{1, 2}); !errors.Is(err, domain.ErrLayoutMismatch) {
		t.Errorf("error = %v, want ErrLayoutMismatch", err)
	}
}

// ─── Store ──────────────────────────────────────────────────────────────────

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RegisterAndAppend(t *testing.T) {
	s := newTestStore(t)

	fields := []string{"tick", "soc_pct", "bus_v"}
	if err := s.RegisterStream("eps", fields, "Qff", 0); err != nil {
		t.Fatalf("RegisterStream error: %v", err)
	}

	if err := s.Append("eps", 42, []float64{42, 68.5, 7.5}); err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if err := s.Append("eps", 52, []float64{52, 67.25, 7.25}); err != nil {
		t.Fatalf("Append error: %v", err)
	}

	frame, err := s.Latest("eps")
	if err != nil {
		t.Fatalf("Latest error: %v", err)
	}
	if frame.Tick != 52 {
		t.Errorf("Latest tick = %d, want 52", frame.Tick)
	}
	if frame.Values[1] != 67.25 || frame.Values[2] != 7.25 {
		t.Errorf("Latest values = %v", frame.Values)
	}

	n, err := s.Count("eps")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}
}

func TestStore_ReRegisterSameShapeIsNoOp(t *testing.T) {
	s := newTestStore(t)
	fields := []string{"tick", "rssi"}

	if err := s.RegisterStream("radio", fields, "Qf", 10); err != nil {
		t.Fatal(err)
	}
	if err := s.RegisterStream("radio", fields, "Qf", 10); err != nil {
		t.Errorf("idempotent re-register returned %v", err)
	}
	if err := s.RegisterStream("radio", fields, "Qd", 10); !errors.Is(err, domain.ErrStreamExists) {
		t.Errorf("conflicting re-register = %v, want ErrStreamExists", err)
	}
}

func TestStore_RegisterRejectsShapeMismatch(t *testing.T) {
	s := newTestStore(t)
	err := s.RegisterStream("bad", []string{"a", "b"}, "Q", 0)
	if !errors.Is(err, domain.ErrLayoutMismatch) {
		t.Errorf("error = %v, want ErrLayoutMismatch", err)
	}
}

func TestStore_AppendUnknownStream(t *testing.T) {
	s := newTestStore(t)
	if err := s.Append("ghost", 1, nil); !errors.Is(err, domain.ErrStreamUnknown) {
		t.Errorf("error = %v, want ErrStreamUnknown", err)
	}
}

func TestStore_RotationKeepsNewest(t *testing.T) {
	s := newTestStore(t)
	if err := s.RegisterStream("imu", []string{"tick", "gx"}, "Qf", 5); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 12; i++ {
		if err := s.Append("imu", uint64(i), []float64{float64(i), 0.5}); err != nil {
			t.Fatal(err)
		}
	}

	n, err := s.Count("imu")
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Errorf("Count after rotation = %d, want 5", n)
	}
	frame, err := s.Latest("imu")
	if err != nil {
		t.Fatal(err)
	}
	if frame.Tick != 11 {
		t.Errorf("Latest tick = %d, want 11 (newest kept)", frame.Tick)
	}
}

func TestStore_StreamsSurviveReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.RegisterStream("eps", []string{"tick", "soc"}, "Qf", 0); err != nil {
		t.Fatal(err)
	}
	if err := s.Append("eps", 7, []float64{7, 61}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer s2.Close()

	frame, err := s2.Latest("eps")
	if err != nil {
		t.Fatalf("Latest after reopen: %v", err)
	}
	if frame.Tick != 7 || frame.Values[1] != 61 {
		t.Errorf("frame after reopen = %+v", frame)
	}
	// Boot-time re-registration against the reloaded declaration.
	if err := s2.RegisterStream("eps", []string{"tick", "soc"}, "Qf", 0); err != nil {
		t.Errorf("re-register after reopen returned %v", err)
	}
}
