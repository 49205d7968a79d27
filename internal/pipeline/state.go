package pipeline

// State is the execution state of a node. The set of variants is closed:
// Waiting, Running, Success and Failed.
type State interface {
	// Terminal reports whether the node will not change state again.
	Terminal() bool
	String() string
	sealed()
}

// Waiting means the node has not started yet.
type Waiting struct{}

// Running means the node is processing records.
type Running struct{}

// Success means the node completed.
type Success struct{}

// Failed means the node stopped with an error.
type Failed struct {
	Detail string
}

func (Waiting) Terminal() bool { return false }
func (Running) Terminal() bool { return false }
func (Success) Terminal() bool { return true }
func (Failed) Terminal() bool  { return true }

func (Waiting) String() string { return "waiting" }
func (Running) String() string { return "running" }
func (Success) String() string { return "success" }

func (f Failed) String() string {
	if f.Detail == "" {
		return "error"
	}
	return "error: " + f.Detail
}

func (Waiting) sealed() {}
func (Running) sealed() {}
func (Success) sealed() {}
func (Failed) sealed()  {}
