package gallery

// PendingSet is the ordered list of discovered image paths. A path is kept
// at most once and entries are never removed. It is not safe for concurrent
// use; the Gallery loop is its only owner.
type PendingSet struct {
	paths []string
	seen  map[string]struct{}
}

func NewPendingSet() *PendingSet {
	return &PendingSet{seen: make(map[string]struct{})}
}

// Add appends path and reports whether it was new.
func (p *PendingSet) Add(path string) bool {
	if _, ok := p.seen[path]; ok {
		return false
	}
	p.seen[path] = struct{}{}
	p.paths = append(p.paths, path)
	return true
}

func (p *PendingSet) Len() int {
	return len(p.paths)
}

// Paths returns a copy in discovery order.
func (p *PendingSet) Paths() []string {
	out := make([]string, len(p.paths))
	copy(out, p.paths)
	return out
}

func (p *PendingSet) Last() (string, bool) {
	if len(p.paths) == 0 {
		return "", false
	}
	return p.paths[len(p.paths)-1], true
}
