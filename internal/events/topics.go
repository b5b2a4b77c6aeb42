package events

// Topic constants for domain events emitted by the pricing/settlement core.
const (
	TopicOrderPlaced    = "order.placed"
	TopicOrderPreparing = "order.preparing"
	TopicOrderAssigned  = "order.assigned"
	TopicOrderAccepted  = "order.accepted"
	TopicOrderRejected  = "order.rejected"
	TopicOrderPickedUp  = "order.picked_up"
	TopicOrderDelivered = "order.delivered"
	TopicOrderCancelled = "order.cancelled"
	TopicEarningCreated = "earning.created"
	TopicDriverSettled  = "driver.settled"
	TopicPartnerSettled = "partner.settled"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicOrderPlaced,
		TopicOrderPreparing,
		TopicOrderAssigned,
		TopicOrderAccepted,
		TopicOrderRejected,
		TopicOrderPickedUp,
		TopicOrderDelivered,
		TopicOrderCancelled,
		TopicEarningCreated,
		TopicDriverSettled,
		TopicPartnerSettled,
	}
}
