package sim

// TimedState is one timestamped pose/velocity sample for a remote car.
// Timestamps are unix milliseconds, server-stamped at broadcast time; a
// receiver that gets a sample without a stamp fills in its receipt time.
type TimedState struct {
	Position  Vec3
	Rotation  float64
	Velocity  *Vec3 // nil when the sender did not report velocity
	Timestamp int64
}

// StateBuffer is a bounded, timestamp-ordered history of TimedStates.
// Capacity overflow evicts the oldest entry.
type StateBuffer struct {
	states []TimedState
	cap    int
}

// NewStateBuffer returns a buffer holding at most capacity samples.
// capacity <= 0 falls back to InterpolationBufferSize.
func NewStateBuffer(capacity int) *StateBuffer {
	if capacity <= 0 {
		capacity = InterpolationBufferSize
	}
	return &StateBuffer{
		states: make([]TimedState, 0, capacity),
		cap:    capacity,
	}
}

// Push inserts a sample keeping the buffer ordered by timestamp. The sender
// stamps monotonically so the common case appends at the tail; a late
// arrival walks backward to its slot instead of corrupting the order.
func (b *StateBuffer) Push(s TimedState) {
	i := len(b.states)
	for i > 0 && b.states[i-1].Timestamp > s.Timestamp {
		i--
	}
	b.states = append(b.states, TimedState{})
	copy(b.states[i+1:], b.states[i:])
	b.states[i] = s

	if len(b.states) > b.cap {
		b.states = b.states[1:]
	}
}

// Prune drops entries older than cutoff, always retaining the newest entry
// so extrapolation and hold-last-pose keep a reference sample.
func (b *StateBuffer) Prune(cutoff int64) {
	if len(b.states) <= 1 {
		return
	}
	keep := 0
	for keep < len(b.states)-1 && b.states[keep].Timestamp <= cutoff {
		keep++
	}
	if keep > 0 {
		b.states = b.states[keep:]
	}
}

// TargetIndex returns the index of the last entry whose timestamp is at or
// before renderTime, or 0 when every entry is newer. Second return is false
// on an empty buffer.
func (b *StateBuffer) TargetIndex(renderTime int64) (int, bool) {
	if len(b.states) == 0 {
		return 0, false
	}
	for i := len(b.states) - 1; i > 0; i-- {
		if b.states[i].Timestamp <= renderTime {
			return i, true
		}
	}
	return 0, true
}

// At returns the sample at index i.
func (b *StateBuffer) At(i int) TimedState { return b.states[i] }

// Len returns the number of buffered samples.
func (b *StateBuffer) Len() int { return len(b.states) }

// Newest returns the most recent sample; ok is false on an empty buffer.
func (b *StateBuffer) Newest() (TimedState, bool) {
	if len(b.states) == 0 {
		return TimedState{}, false
	}
	return b.states[len(b.states)-1], true
}

// Reset drops all samples, used when the connection is rebuilt.
func (b *StateBuffer) Reset() {
	b.states = b.states[:0]
}
