/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package notify implements the Notification Engine (C5): rendering
// templated messages for each activation state transition and dispatching
// them through one or more injected transports.
package notify

import (
	"context"

	"github.com/go-logr/logr"
)

// Type identifies which templated message a Notification carries (spec
// §4.5).
type Type string

const (
	RequestActivation     Type = "RequestActivation"
	ActivationApproved    Type = "ActivationApproved"
	ActivationSelfApproved Type = "ActivationSelfApproved"
)

// Notification is the tuple spec §4.5 defines: who receives it, what it's
// about, and the template properties used to render it.
type Notification struct {
	Recipients   []string
	CcRecipients []string
	Subject      string
	Type         Type
	Properties   map[string]string
	// IsReply marks ActivationApproved/ActivationSelfApproved as a reply to
	// the originating thread, per spec §4.5.
	IsReply bool
}

// Transport delivers a rendered Notification. Functional reports whether
// the transport is currently able to deliver (e.g. mail is configured and
// enabled); non-functional transports are skipped by the Dispatcher rather
// than attempted and failed.
type Transport interface {
	Send(ctx context.Context, n Notification, renderedBody string) error
	Functional() bool
	Name() string
}

// Dispatcher renders a Notification via Renderer and delivers it through
// every functional Transport, isolating per-transport failures (spec §7:
// "Notification failures are isolated... MUST NOT abort provisioning nor
// prevent other transports from trying").
type Dispatcher struct {
	Renderer   *Renderer
	Transports []Transport
	Log        logr.Logger
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(renderer *Renderer, transports []Transport, log logr.Logger) *Dispatcher {
	return &Dispatcher{Renderer: renderer, Transports: transports, Log: log}
}

// Dispatch renders n and sends it through every functional transport.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) {
	body, err := d.Renderer.Render(n)
	if err != nil {
		d.Log.Error(err, "failed to render notification", "type", n.Type, "subject", n.Subject)
		return
	}

	for _, t := range d.Transports {
		if !t.Functional() {
			continue
		}
		if err := t.Send(ctx, n, body); err != nil {
			d.Log.Error(err, "notification transport failed", "transport", t.Name(), "type", n.Type)
			continue
		}
		d.Log.V(1).Info("notification sent", "transport", t.Name(), "type", n.Type, "recipients", n.Recipients)
	}
}
