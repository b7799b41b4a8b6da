// core/rng.go
package core

// The kernel and the state machine must draw from independent
// sub-streams keyed by (seed, tick, work item) so that results are
// bitwise identical regardless of how work is partitioned across
// threads. A shared PRNG would serialise the kernel and tie the output
// to scheduling order, so each work item gets its own counter-based
// stream instead.

// Salts keep the sub-stream families disjoint.
const (
	saltExposure    uint64 = 0x45585053 // "EXPS"
	saltDeath       uint64 = 0x44454154 // "DEAT"
	saltVaccination uint64 = 0x56414343 // "VACC"
)

// stream is a splitmix64 generator over a 64-bit counter. The full
// 64-bit mixing function gives independent streams for adjacent keys.
type stream struct {
	state uint64
}

// newStream derives a stream from the global seed, the tick, a work-item
// index and a salt.
func newStream(seed uint64, tick int, item int32, salt uint64) stream {
	// Pre-mix the key parts so streams that differ in a single field do
	// not start near each other in counter space.
	s := mix64(seed ^ mix64(uint64(tick)+1) ^ mix64(uint64(uint32(item))*0x9e3779b97f4a7c15) ^ mix64(salt))
	return stream{state: s}
}

// next returns the next 64 random bits.
func (s *stream) next() uint64 {
	s.state += 0x9e3779b97f4a7c15
	return mix64(s.state)
}

// float64 returns a uniform deviate in [0, 1).
func (s *stream) float64() float64 {
	return float64(s.next()>>11) / (1 << 53)
}

// intn returns a uniform integer in [0, n). n must be positive.
func (s *stream) intn(n int) int {
	return int(s.next() % uint64(n))
}

// mix64 is the splitmix64 finaliser.
func mix64(z uint64) uint64 {
	z ^= z >> 30
	z *= 0xbf58476d1ce4e5b9
	z ^= z >> 27
	z *= 0x94d049bb133111eb
	z ^= z >> 31
	return z
}
