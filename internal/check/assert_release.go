//go:build !debug

// Package check holds invariant assertions that are only enforced in builds
// tagged debug.
package check

func Assertf(_ bool, _ string, _ ...any) {}
