package errors

// Error codes for the pubsub contracts. Keep stable; used across adapters and the core loop.
const (
	ErrCodeAddressRequired      = "pubsub.address_required"
	ErrCodeTopicRequired        = "pubsub.topic_required"
	ErrCodeSubscriptionRequired = "pubsub.subscription_required"
	ErrCodeHandlerRequired      = "pubsub.handler_required"
	ErrCodeClientRequired       = "pubsub.client_required"
	ErrCodeClientClosed         = "pubsub.client_closed"
	ErrCodeSerializationFailed  = "pubsub.serialization_failed"
	ErrCodeProducerFailed       = "pubsub.producer_failed"
	ErrCodeSendFailed           = "pubsub.send_failed"
	ErrCodeSubscribeFailed      = "pubsub.subscribe_failed"
	ErrCodeConnectFailed        = "pubsub.connect_failed"
	ErrCodeConsumerStarted      = "pubsub.consumer_started"
	ErrCodeConsumerStopped      = "pubsub.consumer_stopped"
	ErrCodeSubscriptionClosed   = "pubsub.subscription_closed"
	ErrCodeUnknownScheme        = "pubsub.unknown_scheme"
)

// Code returns an error value that carries only a code string.
// It implements error by returning the code string in Error().
func Code(code string) error { return codedError(code) }

type codedError string

func (e codedError) Error() string { return string(e) }

var (
	ErrAddressRequired      = Code(ErrCodeAddressRequired)
	ErrTopicRequired        = Code(ErrCodeTopicRequired)
	ErrSubscriptionRequired = Code(ErrCodeSubscriptionRequired)
	ErrHandlerRequired      = Code(ErrCodeHandlerRequired)
	ErrClientRequired       = Code(ErrCodeClientRequired)
	ErrClientClosed         = Code(ErrCodeClientClosed)
	ErrSerializationFailed  = Code(ErrCodeSerializationFailed)
	ErrProducerFailed       = Code(ErrCodeProducerFailed)
	ErrSendFailed           = Code(ErrCodeSendFailed)
	ErrSubscribeFailed      = Code(ErrCodeSubscribeFailed)
	ErrConnectFailed        = Code(ErrCodeConnectFailed)
	ErrConsumerStarted      = Code(ErrCodeConsumerStarted)
	ErrConsumerStopped      = Code(ErrCodeConsumerStopped)
	ErrSubscriptionClosed   = Code(ErrCodeSubscriptionClosed)
	ErrUnknownScheme        = Code(ErrCodeUnknownScheme)
)
