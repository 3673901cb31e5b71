package resize

// Metadata is an order-preserving bag of frame tags. Values are opaque to the
// resize core; codecs and metadata stores decide what they understand.
//
// A nil *Metadata behaves as an empty bag for reads.
type Metadata struct {
	keys   []string
	values map[string]any
}

// NewMetadata returns an empty bag.
func NewMetadata() *Metadata {
	return &Metadata{values: make(map[string]any)}
}

// Set stores a value. Existing keys keep their position.
func (m *Metadata) Set(key string, value any) {
	if m.values == nil {
		m.values = make(map[string]any)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value stored under key.
func (m *Metadata) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *Metadata) Keys() []string {
	if m == nil {
		return nil
	}
	keys := make([]string, len(m.keys))
	copy(keys, m.keys)
	return keys
}

// Len returns the number of entries.
func (m *Metadata) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Range calls fn for each entry in order until fn returns false.
func (m *Metadata) Range(fn func(key string, value any) bool) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// Merge copies every entry of other into m.
func (m *Metadata) Merge(other *Metadata) {
	other.Range(func(key string, value any) bool {
		m.Set(key, value)
		return true
	})
}

// Clone returns a shallow copy. Cloning nil yields an empty bag.
func (m *Metadata) Clone() *Metadata {
	c := NewMetadata()
	c.Merge(m)
	return c
}
