package memsegment

// managedSource allocates regions from the Go heap. Released regions are
// simply dropped and reclaimed by the garbage collector.
type managedSource struct{}

func (managedSource) Alloc(n int) (Region, error) {
	return Region{
		Data: make([]byte, n),
		Kind: SourceManaged,
	}, nil
}

func (managedSource) Release(_ Region) error {
	return nil
}

func (managedSource) Kind() SourceKind {
	return SourceManaged
}
