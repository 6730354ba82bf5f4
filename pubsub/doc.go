/*
Package pubsub provides the core glue between an application and a messaging
backend: a per-topic producer cache for JSON publishing and a typed consumer
loop that receives, decodes, dispatches, and acknowledges messages.
It remains decoupled from concrete transports via the contract interfaces.
*/
package pubsub
