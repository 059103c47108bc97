// Package sms is the outbound SMS collaborator. The core only needs a Sender;
// deployments plug a real gateway client in, development logs the message.
package sms

import (
	"context"
	"log"
)

// Sender delivers one SMS.
type Sender interface {
	Send(ctx context.Context, phone, message string) error
}

// Default is the process-wide sender. Nil means SMS is not configured.
var Default Sender

// SetDefault installs the process-wide sender.
func SetDefault(s Sender) {
	Default = s
}

// Send delivers via the default sender, logging when none is configured.
func Send(ctx context.Context, phone, message string) error {
	if Default == nil {
		log.Printf("[SMS] not configured, dropping message to %s", phone)
		return nil
	}
	return Default.Send(ctx, phone, message)
}

// LogSender writes messages to the process log; the development default.
type LogSender struct{}

func (LogSender) Send(_ context.Context, phone, message string) error {
	log.Printf("[SMS] to=%s message=%q", phone, message)
	return nil
}
