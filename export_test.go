package memstream

// resetGlobalForTesting restores the one-shot globals so that tests can
// exercise the latching behavior in isolation.
func resetGlobalForTesting() {
	global.mu.Lock()
	defer global.mu.Unlock()

	if global.pool != nil {
		global.pool.ReleaseAllFree()
		global.pool.Close()
	}

	global.pool = nil
	global.sourceKind = SegmentSourceManaged
	global.sourceLatched = false
	global.defaults = streamOptions{zeroPolicy: ZeroPolicyBackground}
	global.defaultsLatched = false
}
