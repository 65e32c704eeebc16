package memstream

import (
	"context"
	"io"
	"testing"

	"github.com/kopia/memstream/internal/bufpool"
	"github.com/kopia/memstream/logging"
)

func benchPool(b *testing.B) *bufpool.Pool {
	b.Helper()

	p := bufpool.New(logging.WithLogger(context.Background(), func(string) logging.Logger {
		return logging.NullLogger
	}), bufpool.Options{DisableTrimmer: true})
	b.Cleanup(p.Close)

	return p
}

func BenchmarkWriteGrow1MB(b *testing.B) {
	pool := benchPool(b)
	payload := make([]byte, 4096)

	b.ReportAllocs()

	for b.Loop() {
		s := newStream(context.Background(), pool, streamOptions{zeroPolicy: ZeroPolicyBackground})

		for range 256 {
			s.Write(payload) //nolint:errcheck
		}

		s.Close() //nolint:errcheck
	}
}

func BenchmarkSmallStreamReuse(b *testing.B) {
	pool := benchPool(b)
	payload := make([]byte, 1024)

	b.ReportAllocs()

	for b.Loop() {
		s := newStream(context.Background(), pool, streamOptions{zeroPolicy: ZeroPolicyNone})
		s.Write(payload) //nolint:errcheck
		s.Close()        //nolint:errcheck
	}
}

func BenchmarkPromotion(b *testing.B) {
	pool := benchPool(b)
	small := make([]byte, 20000)
	large := make([]byte, 60000)

	b.ReportAllocs()

	for b.Loop() {
		s := newStream(context.Background(), pool, streamOptions{zeroPolicy: ZeroPolicyNone})
		s.Write(small) //nolint:errcheck
		s.Write(large) //nolint:errcheck
		s.Close()      //nolint:errcheck
	}
}

func BenchmarkReadChained(b *testing.B) {
	pool := benchPool(b)

	s := newStream(context.Background(), pool, streamOptions{zeroPolicy: ZeroPolicyNone})
	defer s.Close() //nolint:errcheck

	s.Write(make([]byte, 1<<20)) //nolint:errcheck

	buf := make([]byte, 8192)

	b.ReportAllocs()

	for b.Loop() {
		s.Seek(0, io.SeekStart) //nolint:errcheck

		for {
			n, _ := s.Read(buf)
			if n == 0 {
				break
			}
		}
	}
}

func BenchmarkToByteSlice(b *testing.B) {
	pool := benchPool(b)

	s := newStream(context.Background(), pool, streamOptions{zeroPolicy: ZeroPolicyNone})
	defer s.Close() //nolint:errcheck

	s.Write(make([]byte, 1<<20)) //nolint:errcheck

	b.ReportAllocs()

	for b.Loop() {
		s.ToByteSlice() //nolint:errcheck
	}
}
