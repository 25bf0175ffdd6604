// Package bus implements the durable event bus used to hand off blockchain
// commands to the execution worker and to receive their asynchronous results.
// Messages flow through a single topic exchange; each consuming service owns
// one durable queue bound by routing-key patterns. Delivery is at-most-once
// after the first handler failure: rejected messages are not redelivered.
package bus
