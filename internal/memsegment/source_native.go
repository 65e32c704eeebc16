package memsegment

import (
	mmap "github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
)

// nativeSource allocates regions as anonymous memory mappings obtained
// directly from the operating system, bypassing the Go heap. Releasing a
// segment unmaps it immediately.
type nativeSource struct{}

func (nativeSource) Alloc(n int) (Region, error) {
	m, err := mmap.MapRegion(nil, n, mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		return Region{}, errors.Wrap(err, "unable to map anonymous region")
	}

	return Region{
		Data:  m,
		Kind:  SourceNative,
		unmap: m.Unmap,
	}, nil
}

func (nativeSource) Release(r Region) error {
	if r.unmap == nil {
		return nil
	}

	return errors.Wrap(r.unmap(), "unable to unmap region")
}

func (nativeSource) Kind() SourceKind {
	return SourceNative
}
