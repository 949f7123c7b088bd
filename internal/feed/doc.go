// Package feed owns the TCP session to a DX Cluster node.
//
// A [Client] dials the node, logs in with a callsign, sends any post-login
// commands and hands back a [Stream] of trimmed text lines. Streams are
// single-use: the first error closes the socket and every later ReadLine
// returns an error. Reconnecting means calling [Client.Connect] again.
//
// Connection state follows
//
//	Disconnected → Connecting → LoggedIn → Streaming → Disconnected
//
// and every failure surfaces as a [*Error] carrying a [Reason]. The package
// never retries on its own; the caller decides the reconnect policy.
package feed
