// Package aggregates defines the write boundaries whose invariants must hold
// atomically, plus the error taxonomy every aggregate reports with.
package aggregates
