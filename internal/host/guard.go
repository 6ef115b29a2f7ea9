package host

// Guard rejects nested entry into the operations it protects. The zero
// value is unlocked. A Guard is not part of contract state, so rollbacks
// never touch it.
type Guard struct {
	entered bool
}

// Enter locks the guard. Callers must defer the returned release.
func (g *Guard) Enter() (release func(), err error) {
	if g.entered {
		return nil, ErrReentrantCall
	}
	g.entered = true
	return func() { g.entered = false }, nil
}
