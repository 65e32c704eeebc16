// Package memstream provides in-memory byte streams backed by recycling
// buffer pools.
//
// Streams that outgrow a single pooled block are backed by a chain of
// fixed-size segments, so once chained, growth never copies existing data and retired
// storage is recycled one-for-one through size-keyed freelists. Retired
// buffers are cleared before reuse according to a configurable zero-buffer
// policy, by default asynchronously on a background worker. Idle reserves
// are trimmed back to the segment source on a jittered schedule.
package memstream
