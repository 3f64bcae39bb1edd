package connectors

import "mototracker/internal"

// MailConnector lists candidate audit-export mails in a mailbox or label.
type MailConnector interface {
	FetchInbox(label string, max int) ([]internal.FetchedMailMessage, error)
}
