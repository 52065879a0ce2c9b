// Package common keeps small types shared by conversion stages which must
// not depend on each other.
package common

import "fmt"

// MessageType classifies recoverable diagnostics.
type MessageType string

const (
	MessageWarning MessageType = "warning"
	MessageInfo    MessageType = "info"
)

// Message is a non fatal diagnostic produced while converting. Messages are
// accumulated and returned to the caller together with the result, they never
// abort processing.
type Message struct {
	Type MessageType
	Text string
}

func (m Message) String() string {
	return string(m.Type) + ": " + m.Text
}

func Warningf(format string, args ...any) Message {
	return Message{Type: MessageWarning, Text: fmt.Sprintf(format, args...)}
}

func Infof(format string, args ...any) Message {
	return Message{Type: MessageInfo, Text: fmt.Sprintf(format, args...)}
}
