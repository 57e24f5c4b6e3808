package testutil

// Object is a labelled host object for engine tests. It holds a pointer
// so the runtime tracks its reachability precisely.
type Object struct {
	Label string
	self  *Object
}

// NewObject allocates a fresh object.
func NewObject(label string) *Object {
	o := &Object{Label: label}
	o.self = o
	return o
}

// Objects allocates one object per label.
func Objects(labels ...string) []*Object {
	out := make([]*Object, len(labels))
	for i, l := range labels {
		out[i] = NewObject(l)
	}
	return out
}

func (o *Object) String() string { return o.Label }
