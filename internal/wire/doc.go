// Package wire defines the shapes exchanged with the workflow backend.
//
// This package contains type definitions and pure helpers only. Every other
// internal package imports wire; wire imports nothing internal.
//
// Key design constraints:
//   - JSON tags use the backend's camelCase names
//   - Patch paths are JSON Pointers (RFC 6901) relative to the workflow root
//   - Canonical JSON (RFC 8785 key order, NFC strings) is the only encoding
//     used for digests
package wire
