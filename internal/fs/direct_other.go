//go:build !linux

package fs

const directFlag = 0

func isDirectRejected(error) bool { return false }
