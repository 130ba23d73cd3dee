package zpack

// Remove erases name from the in-memory directory (§4.6). The payload
// bytes already written to disk remain as dead space until the next Write
// or Repack. It reports whether an entry was actually present.
func (a *Archive) Remove(name string) bool {
	a.assertIdle()
	a.state = stateWriting
	defer func() { a.state = stateOpen }()

	if _, ok := a.dir[name]; !ok {
		return false
	}
	delete(a.dir, name)
	a.debugLog().Debug().Str("name", name).Msg("zpack: removed entry from directory")
	return true
}
