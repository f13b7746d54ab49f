// Package relay forwards datagrams received on a managed socket to a Sink.
//
// The receiver and forwarder run as a conc context pool joined by a
// bounded queue. Cancelling the context passed to Run is the shutdown
// signal: the receiver stops reading, the forwarder drains what is
// queued, and a relay.shutdown event reports the totals.
package relay
