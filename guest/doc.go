// Package guest hosts the compute module as a core WebAssembly binary on
// wazero.
//
// # Binary Interface
//
// A guest exports its linear memory as "memory" and an allocator
// alloc(size) -> ptr that the host uses to place strings. The remaining
// exports are described in WIT by MainContract and, for workers, by the
// contract of the worker variant (RelayWorkerContract or
// RequestResponseWorkerContract). They are checked against the compiled
// module before instantiation; contract names map to export names by
// replacing "-" with "_".
//
// Guests may import two host functions from the "harness" module:
//
//	post_message(handle: i32, ptr: i32, len: i32)
//	log(ptr: i32, len: i32)
//
// Handles are issued by SetWorker and SetGlobalScope. Passing an unknown
// handle or an out-of-range pointer traps the guest.
//
// # Isolation
//
// Every Main and Worker owns a separate wazero runtime, so the two share
// nothing except the messages passed through their ports. Neither type is
// safe for concurrent use.
package guest
