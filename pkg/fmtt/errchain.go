// Package fmtt holds formatting helpers for diagnostics.
package fmtt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"
)

// ErrChain renders each layer of an error chain with its concrete type,
// one line per layer.
func ErrChain(err error) string {
	if err == nil {
		return "<nil>"
	}

	var b strings.Builder
	i := 0
	for e := err; e != nil; e = errors.Unwrap(e) {
		fmt.Fprintf(&b, "[%d] %T: %v\n", i, e, e)
		i++
	}
	return b.String()
}

// ErrChainDebug renders the chain with a full spew dump of every layer.
// Debug-path only; the output is verbose.
func ErrChainDebug(err error) string {
	if err == nil {
		return "<nil>"
	}

	var b strings.Builder
	for i := 0; err != nil; err = errors.Unwrap(err) {
		fmt.Fprintf(&b, "[%d] %T: %v\n", i, err, err)
		b.WriteString(spew.Sdump(err))
		i++
	}
	return b.String()
}
