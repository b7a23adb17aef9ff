package corpus

// State is the knowledge the binding has about one remote resource.
type State int

const (
	// StateUnknown: an id may be cached but has not been verified.
	StateUnknown State = iota
	// StateVerified: the id was retrieved or created successfully.
	StateVerified
	// StateStale: the cached id failed verification and was cleared.
	StateStale
)

func (s State) String() string {
	switch s {
	case StateVerified:
		return "verified"
	case StateStale:
		return "stale"
	default:
		return "unknown"
	}
}

// resource tracks the id and state of one remote resource.
type resource struct {
	id    string
	state State
}

func newResource(id string) resource {
	return resource{id: id, state: StateUnknown}
}

func (r *resource) verify(id string) {
	r.id = id
	r.state = StateVerified
}

// markStale clears the id so the next ensure creates a new resource.
func (r *resource) markStale() {
	r.id = ""
	r.state = StateStale
}

// invalidate demotes a verified id so the next ensure retrieves it again.
func (r *resource) invalidate() {
	if r.state == StateVerified {
		r.state = StateUnknown
	}
}
