// Package firewall turns admission decisions into packet-filter state.
//
// # Overview
//
// A [Gateway] owns the forwarding policy of the LAN. Devices start out
// unauthorized: their web traffic is redirected to the portal, their DNS is
// answered by the captive responder, and everything else is dropped. An
// authorized device is identified by its (IPv4, MAC) pair so that an address
// borrowed by another adapter does not inherit the bypass.
//
// # Implementations
//
//   - [NFTGateway]: nftables backend (Linux). The baseline ruleset is built
//     with [ScriptBuilder] and applied atomically through `nft -f -`.
//     Per-device changes are netlink batches on two sets, so a login never
//     rewrites the ruleset.
//   - [MemoryGateway]: in-memory implementation that records every call.
//     Used by tests and by the "memory" backend.
//
// # Ruleset
//
//	table inet netguard
//	  set clients  { type ipv4_addr . ether_addr }
//	  set revoked  { type ether_addr }
//	  chain forward     policy drop: revoked drop, established accept, clients accept
//	  chain prerouting  clients: DNS to upstream, bypass; others: HTTP/DNS to portal
//	  chain postrouting WAN masquerade
//
// Revocation moves the MAC into the revoked set, whose drop rule sits ahead
// of every accept, then flushes connection tracking for the address so open
// flows die immediately.
//
// # Shutdown
//
// Cleanup deletes the table. With no drop policy left, forwarding reverts to
// the host default, which keeps the LAN reachable if the portal goes away.
package firewall
