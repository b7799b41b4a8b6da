package core

import "testing"

func TestStream_Deterministic(t *testing.T) {
	a := newStream(42, 7, 3, saltExposure)
	b := newStream(42, 7, 3, saltExposure)
	for i := 0; i < 100; i++ {
		if x, y := a.next(), b.next(); x != y {
			t.Fatalf("streams with identical keys diverged at draw %d: %x != %x", i, x, y)
		}
	}
}

func TestStream_IndependentKeys(t *testing.T) {
	base := newStream(42, 7, 3, saltExposure)
	variants := []stream{
		newStream(43, 7, 3, saltExposure),
		newStream(42, 8, 3, saltExposure),
		newStream(42, 7, 4, saltExposure),
		newStream(42, 7, 3, saltDeath),
	}
	first := base.next()
	for i, v := range variants {
		if v.next() == first {
			t.Fatalf("variant %d produced the same first draw as the base stream", i)
		}
	}
}

func TestStream_Float64Range(t *testing.T) {
	s := newStream(1, 0, 0, saltDeath)
	for i := 0; i < 10000; i++ {
		f := s.float64()
		if f < 0 || f >= 1 {
			t.Fatalf("draw %d = %v outside [0,1)", i, f)
		}
	}
}

func TestStream_IntnRange(t *testing.T) {
	s := newStream(1, 0, 0, saltVaccination)
	for i := 0; i < 1000; i++ {
		if n := s.intn(10); n < 0 || n >= 10 {
			t.Fatalf("intn(10) = %d", n)
		}
	}
}
