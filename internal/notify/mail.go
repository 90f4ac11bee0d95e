/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/go-logr/logr"
)

// MailTransport delivers notifications via SMTP, adapted from the fleet
// dispatcher's EmailChannel to the engine's Notification shape. enableEmail
// being false (spec §6's "enableEmail" config key) is the normal way to
// fall back to LoggingTransport rather than attempting delivery.
type MailTransport struct {
	Host       string
	Port       int
	From       string
	Username   string
	Password   string
	enableMail bool
}

// NewMailTransport constructs a MailTransport. enableMail mirrors the
// "enableEmail" configuration key; when false, Functional reports false and
// the dispatcher skips this transport entirely.
func NewMailTransport(host string, port int, from, username, password string, enableMail bool) *MailTransport {
	return &MailTransport{Host: host, Port: port, From: from, Username: username, Password: password, enableMail: enableMail}
}

func (m *MailTransport) Name() string     { return "mail" }
func (m *MailTransport) Functional() bool { return m.enableMail }

func (m *MailTransport) Send(ctx context.Context, n Notification, renderedBody string) error {
	to := append(append([]string{}, n.Recipients...), n.CcRecipients...)

	subject := n.Subject
	if n.IsReply && !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}

	header := fmt.Sprintf("From: %s\r\nTo: %s\r\n", m.From, strings.Join(n.Recipients, ","))
	if len(n.CcRecipients) > 0 {
		header += fmt.Sprintf("Cc: %s\r\n", strings.Join(n.CcRecipients, ","))
	}
	header += fmt.Sprintf("Subject: %s\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n", subject)

	addr := fmt.Sprintf("%s:%d", m.Host, m.Port)
	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}

	return smtp.SendMail(addr, auth, m.From, to, []byte(header+renderedBody))
}

// LoggingTransport is the always-functional fallback used when mail is
// disabled: it writes a structured representation of the notification to
// the log instead of sending it (spec §4.5).
type LoggingTransport struct {
	Log logr.Logger
}

func NewLoggingTransport(log logr.Logger) *LoggingTransport { return &LoggingTransport{Log: log} }

func (l *LoggingTransport) Name() string     { return "log" }
func (l *LoggingTransport) Functional() bool { return true }

func (l *LoggingTransport) Send(ctx context.Context, n Notification, renderedBody string) error {
	l.Log.Info("notification", "representation", LogRepresentation(n))
	return nil
}
