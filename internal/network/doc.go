// Package network wraps the host networking knobs the gateway depends on.
//
// # Key Components
//
//   - [SystemController]: sysctl reads and writes (IPv4 forwarding)
//   - [InspectLink]: interface presence, carrier, driver and addresses,
//     used by the preflight check
package network
