package decode

// decoderKey identifies an open decoder within one worker.
type decoderKey struct {
	source  string
	lane    int
	allowHW bool
}

// decoderMap is a bounded LRU map of open decoders. Recency uses a monotonic
// access counter rather than wall clocks so eviction order is deterministic.
// It is not safe for concurrent use; each worker owns exactly one.
type decoderMap struct {
	cap     int
	counter uint64
	open    map[decoderKey]*decoderSlot
}

type decoderSlot struct {
	decoder  *Decoder
	lastUsed uint64
}

func newDecoderMap(capacity int) *decoderMap {
	if capacity < 1 {
		capacity = 1
	}
	return &decoderMap{
		cap:  capacity,
		open: make(map[decoderKey]*decoderSlot),
	}
}

// get returns the open decoder for key, bumping its recency.
func (m *decoderMap) get(key decoderKey) (*Decoder, bool) {
	slot, ok := m.open[key]
	if !ok {
		return nil, false
	}
	m.counter++
	slot.lastUsed = m.counter
	return slot.decoder, true
}

// put records a newly opened decoder, evicting the least recently used entry
// when the cap is exceeded. Evicted decoders are closed, releasing their
// pipeline and any hardware state.
func (m *decoderMap) put(key decoderKey, dec *Decoder) {
	if existing, ok := m.open[key]; ok {
		existing.decoder.Close()
	}
	m.counter++
	m.open[key] = &decoderSlot{decoder: dec, lastUsed: m.counter}

	for len(m.open) > m.cap {
		var (
			oldestKey  decoderKey
			oldestSlot *decoderSlot
		)
		for k, slot := range m.open {
			if oldestSlot == nil || slot.lastUsed < oldestSlot.lastUsed {
				oldestKey = k
				oldestSlot = slot
			}
		}
		oldestSlot.decoder.Close()
		delete(m.open, oldestKey)
	}
}

// closeAll releases every open decoder. Used at pool shutdown.
func (m *decoderMap) closeAll() {
	for key, slot := range m.open {
		slot.decoder.Close()
		delete(m.open, key)
	}
}

func (m *decoderMap) len() int {
	return len(m.open)
}
