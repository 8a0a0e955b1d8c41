package domain

// NotificationKind names a policy outcome message.
type NotificationKind string

// Notification kinds.
const (
	NotifyLimitExceeded    NotificationKind = "limit_exceeded"
	NotifyLargeTransaction NotificationKind = "large_transaction"
	NotifyDepositSuccess   NotificationKind = "deposit_success"
)

// Notification is an outbound message about a verified transaction.
type Notification struct {
	Kind          NotificationKind `json:"kind"`
	Username      string           `json:"username"`
	Email         string           `json:"email"`
	TransactionID int64            `json:"transaction_id"`
	Amount        string           `json:"amount"`
}
