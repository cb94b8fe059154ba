// Package nfhttp provides a stacked HTTP/1.1 client pipeline: an asynchronous,
// connection-pooling transport wrapped by a persistent RFC-7234-inspired cache,
// a request coalescer, and a user-programmable request/response modifier shell.
//
// The four layers share one capability:
//
//	Perform(ctx, request, callback) -> Token
//
// client.CreateClient assembles the stack inside-out (Transport, then Cache,
// then Coalescer, then Modifier) and returns the outermost layer as a
// Capability.
package nfhttp
