package input

// Session is the set of active touch identifiers.
// An identifier is a member between its touchstart and its matching
// touchend or touchcancel.
type Session struct {
	active map[int]struct{}
}

// NewSession creates an empty touch session.
func NewSession() *Session {
	return &Session{active: make(map[int]struct{})}
}

// Add marks id as active.
func (s *Session) Add(id int) {
	s.active[id] = struct{}{}
}

// Remove drops id; unknown identifiers are ignored.
func (s *Session) Remove(id int) {
	delete(s.active, id)
}

// Contains reports whether id is active.
func (s *Session) Contains(id int) bool {
	_, ok := s.active[id]
	return ok
}

// Len returns the number of active touches.
func (s *Session) Len() int {
	return len(s.active)
}

// Apply updates membership for the changed touches of ev.
func (s *Session) Apply(ev TouchEvent) {
	switch ev.Type {
	case TouchStart:
		for _, t := range ev.ChangedTouches {
			s.Add(t.Identifier)
		}
	case TouchEnd, TouchCancel:
		for _, t := range ev.ChangedTouches {
			s.Remove(t.Identifier)
		}
	}
}
