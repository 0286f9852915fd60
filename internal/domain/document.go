package domain

import "time"

// Document is one mailbox message as fetched from the mail source. Bodies
// are decoded UTF-8 text; either may be empty depending on the MIME
// structure of the original email.
type Document struct {
	ID         string
	ThreadID   string
	Sender     string
	Subject    string
	ReceivedAt time.Time
	PlainBody  string
	HTMLBody   string
}
