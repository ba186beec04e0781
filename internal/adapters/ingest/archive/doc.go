// Package archive handles locating and streaming members of wildlife-observation
// archive containers (tar or zip)
//
// Design choices:
// - Forward-only, single-pass streams: tar members are walked sequentially and the
//   matching member's gzip stream is decompressed on the fly; nothing is extracted
//   to disk or buffered whole in memory.
// - Member sizes are best-effort estimates for progress reporting. Tar reports the
//   compressed member size, zip the uncompressed size; callers must treat both as
//   approximate.
// - The tab-delimited scanner uses bufio.Scanner with a 16MB cap so a pathological
//   comment field cannot wedge a multi-gigabyte load.
package archive
