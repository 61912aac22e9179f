// Package enginetest provides a reusable conformance test suite for
// engine.KVEngine implementations. Each engine package runs the suite
// against its own factory in addition to any implementation-specific tests.
package enginetest
