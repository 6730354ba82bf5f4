/*
Package rabbitmq provides a RabbitMQ backend for the pubsub contracts.
Each topic maps to a durable fanout exchange; each subscription maps to a
durable queue bound to that exchange, consumed with a prefetch of one and
manual acknowledgements.
*/
package rabbitmq
