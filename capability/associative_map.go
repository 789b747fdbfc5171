package capability

// AssociativeMap is a Value-keyed map, mirroring the reference
// implementation's `HashMap<Value, Value>`. Value is not usable as a native
// Go map key once it can contain a slice or nested map, so AssociativeMap
// buckets entries by Value.Hash and resolves collisions with Value.Equal —
// which, given Hash only depends on Kind, means every entry of a given kind
// lives in the same bucket and lookup within a bucket is linear. This is
// the same pathological-but-correct tradeoff documented on Value.Hash.
type AssociativeMap struct {
	buckets map[uint64][]entry
}

type entry struct {
	key Value
	val Value
}

// NewAssociativeMap returns an empty AssociativeMap.
func NewAssociativeMap() *AssociativeMap {
	return &AssociativeMap{buckets: make(map[uint64][]entry)}
}

// Set inserts or replaces the value stored under key.
func (m *AssociativeMap) Set(key, val Value) {
	h := key.Hash()
	bucket := m.buckets[h]
	for i, e := range bucket {
		if e.key.Equal(key) {
			bucket[i].val = val
			return
		}
	}
	m.buckets[h] = append(bucket, entry{key: key, val: val})
}

// Get returns the value stored under key and whether it was present.
func (m *AssociativeMap) Get(key Value) (Value, bool) {
	for _, e := range m.buckets[key.Hash()] {
		if e.key.Equal(key) {
			return e.val, true
		}
	}
	return Value{}, false
}

// Len returns the number of entries in m.
func (m *AssociativeMap) Len() int {
	n := 0
	for _, bucket := range m.buckets {
		n += len(bucket)
	}
	return n
}

// Range calls fn for every entry in m. Iteration order is unspecified.
func (m *AssociativeMap) Range(fn func(key, val Value)) {
	for _, bucket := range m.buckets {
		for _, e := range bucket {
			fn(e.key, e.val)
		}
	}
}

// Equal reports whether m and other contain the same set of key/value
// pairs, regardless of insertion order.
func (m *AssociativeMap) Equal(other *AssociativeMap) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.Len() != other.Len() {
		return false
	}
	equal := true
	m.Range(func(key, val Value) {
		if !equal {
			return
		}
		ov, ok := other.Get(key)
		if !ok || !val.Equal(ov) {
			equal = false
		}
	})
	return equal
}
