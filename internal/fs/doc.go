// Package fs abstracts the file operations the benchmark needs.
//
// The abstraction exists for two reasons: the direct fetch strategy opens
// dataset files with O_DIRECT, which is platform specific, and tests inject
// storage failures through FaultyFS to exercise the fatal I/O path of the
// drivers without a broken disk.
package fs
