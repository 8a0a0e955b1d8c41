// Package notification delivers policy outcome messages outside the request path.
package notification

import (
	"fmt"

	"github.com/go-petr/pet-ledger/internal/domain"
)

// Message is a rendered notification ready to be sent.
type Message struct {
	Kind          domain.NotificationKind `json:"kind"`
	From          string                  `json:"from"`
	To            string                  `json:"to"`
	Username      string                  `json:"username"`
	TransactionID int64                   `json:"transaction_id"`
	Subject       string                  `json:"subject"`
	Body          string                  `json:"body"`
}

// Renderer turns notifications into messages.
type Renderer struct {
	From       string
	DailyLimit string
}

// Render builds the subject and body for n.
func (r Renderer) Render(n domain.Notification) (Message, error) {
	m := Message{
		Kind:          n.Kind,
		From:          r.From,
		To:            n.Email,
		Username:      n.Username,
		TransactionID: n.TransactionID,
	}

	switch n.Kind {
	case domain.NotifyLimitExceeded:
		m.Subject = "Transaction Limit Exceeded"
		m.Body = fmt.Sprintf("Hello %s,\n\nYour transaction of %s exceeds the daily limit of %s. "+
			"Please try a lower amount.", n.Username, n.Amount, r.DailyLimit)
	case domain.NotifyLargeTransaction:
		m.Subject = "Large Transaction Alert"
		m.Body = fmt.Sprintf("Hello %s,\n\nA large transaction of %s was initiated on your account. "+
			"If this was not you, please contact support immediately.", n.Username, n.Amount)
	case domain.NotifyDepositSuccess:
		m.Subject = "Deposit Successful"
		m.Body = fmt.Sprintf("Hello %s,\n\nYour deposit of %s was successful and "+
			"has been credited to your account balance.", n.Username, n.Amount)
	default:
		return m, fmt.Errorf("unknown notification kind %q", n.Kind)
	}

	return m, nil
}
