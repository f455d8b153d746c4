package model

import "time"

// MessageText is the text the classifier looks at. Empty fields stand for absent values.
type MessageText struct {
	Subject string `json:"subject"`
	Sender  string `json:"sender"`
	Snippet string `json:"snippet"`
}

// Message is a mail item as returned by a provider adapter.
type Message struct {
	Date     time.Time
	ID       string
	ThreadID string
	Subject  string
	Sender   string
	Snippet  string
	// RawDate is the Date header exactly as the provider returned it.
	RawDate  string
	Body     string
	LabelIDs []string
}

// Text returns the fields used for classification.
func (m Message) Text() MessageText {
	return MessageText{
		Subject: m.Subject,
		Sender:  m.Sender,
		Snippet: m.Snippet,
	}
}

// ClassifiedMessage pairs a message with its classification.
type ClassifiedMessage struct {
	Classification Classification
	Message        Message
}
