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
	"strings"
	"time"

	"github.com/qen-cloud/jitaccess/internal/accessmodel"
)

func reviewerEmails(reviewers []accessmodel.UserId) []string {
	emails := make([]string, len(reviewers))
	for i, r := range reviewers {
		emails[i] = r.Email
	}
	return emails
}

func requestProperties(req *accessmodel.MpaRequest) map[string]string {
	entitlement := accessmodel.RoleBinding{}
	if len(req.Entitlements) > 0 {
		entitlement = req.Entitlements[0]
	}
	return map[string]string{
		"BENEFICIARY":   req.RequestingUser.Email,
		"REVIEWERS":     strings.Join(reviewerEmails(req.Reviewers), ", "),
		"RESOURCE":      entitlement.Resource,
		"ROLE":          entitlement.Role,
		"JUSTIFICATION": req.Justification,
		"START":         req.StartTime.Format(time.RFC3339),
		"END":           req.EndTime().Format(time.RFC3339),
	}
}

// RequestActivationNotification builds the notification sent to reviewers
// when a token is issued (spec §4.5: to reviewers, cc beneficiary).
func RequestActivationNotification(req *accessmodel.MpaRequest) Notification {
	return Notification{
		Recipients:   reviewerEmails(req.Reviewers),
		CcRecipients: []string{req.RequestingUser.Email},
		Subject:      fmt.Sprintf("Access activation request: %s on %s", req.Entitlements[0].Role, req.Entitlements[0].Resource),
		Type:         RequestActivation,
		Properties:   requestProperties(req),
	}
}

// ActivationApprovedNotification builds the notification sent to the
// beneficiary once a reviewer approves (spec §4.5: to beneficiary, cc
// reviewers, marked as reply).
func ActivationApprovedNotification(req *accessmodel.MpaRequest, approver accessmodel.UserId) Notification {
	props := requestProperties(req)
	props["APPROVER"] = approver.Email
	return Notification{
		Recipients:   []string{req.RequestingUser.Email},
		CcRecipients: reviewerEmails(req.Reviewers),
		Subject:      fmt.Sprintf("Access activation approved: %s on %s", req.Entitlements[0].Role, req.Entitlements[0].Resource),
		Type:         ActivationApproved,
		Properties:   props,
		IsReply:      true,
	}
}

// ActivationSelfApprovedNotification builds the notification sent to the
// beneficiary of a self-approved (JIT) activation (spec §4.5: to
// beneficiary, marked as reply).
func ActivationSelfApprovedNotification(req *accessmodel.JitRequest) Notification {
	entitlement := accessmodel.RoleBinding{}
	if len(req.Entitlements) > 0 {
		entitlement = req.Entitlements[0]
	}
	return Notification{
		Recipients: []string{req.RequestingUser.Email},
		Subject:    fmt.Sprintf("Access activated: %s on %s", entitlement.Role, entitlement.Resource),
		Type:       ActivationSelfApproved,
		Properties: map[string]string{
			"BENEFICIARY":   req.RequestingUser.Email,
			"RESOURCE":      entitlement.Resource,
			"ROLE":          entitlement.Role,
			"JUSTIFICATION": req.Justification,
			"START":         req.StartTime.Format(time.RFC3339),
			"END":           req.EndTime().Format(time.RFC3339),
		},
		IsReply: true,
	}
}

// ActivatorNotifier adapts a Dispatcher to the activation.Notifier
// interface the state machine depends on.
type ActivatorNotifier struct {
	Dispatcher *Dispatcher
}

func (a *ActivatorNotifier) NotifyRequestActivation(ctx context.Context, req *accessmodel.MpaRequest) {
	a.Dispatcher.Dispatch(ctx, RequestActivationNotification(req))
}

func (a *ActivatorNotifier) NotifyActivationApproved(ctx context.Context, req *accessmodel.MpaRequest, approver accessmodel.UserId) {
	a.Dispatcher.Dispatch(ctx, ActivationApprovedNotification(req, approver))
}

func (a *ActivatorNotifier) NotifyActivationSelfApproved(ctx context.Context, req *accessmodel.JitRequest) {
	a.Dispatcher.Dispatch(ctx, ActivationSelfApprovedNotification(req))
}
