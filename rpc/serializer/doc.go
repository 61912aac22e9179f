// Package serializer provides message serialization for the kiwi-store RPC
// system. It defines a common interface and multiple implementations for
// serializing and deserializing messages between client and server.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations
//     must satisfy.
//
//   - binarySerializerImpl: Custom binary format optimized for speed and
//     space efficiency. Uses a flag-based approach to encode only present
//     fields, resulting in compact serialized data with minimal overhead.
//     Recommended for production use.
//
//   - jsonSerializerImpl: JSON encoding, useful for debugging or
//     interoperability with other systems, at lower performance.
//
//   - gobSerializerImpl: Go's built-in gob encoding. Kept for comparison;
//     consistently larger and slower than the other two.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent
//	use across multiple goroutines without additional synchronization.
package serializer
