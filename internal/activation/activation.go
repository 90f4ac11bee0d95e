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

// Package activation implements the Activator state machine (C3):
// validating activation requests against justification, duration, and
// reviewer-count policy, then driving token issuance or direct provisioning
// and dispatching notifications at each transition.
package activation

import (
	"context"
	"regexp"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"

	"github.com/qen-cloud/jitaccess/internal/accessmodel"
	"github.com/qen-cloud/jitaccess/internal/provisioner"
)

var tracer = otel.Tracer("github.com/qen-cloud/jitaccess/internal/activation")

// startTimeTolerance is how far into the past a request's startTime may lie
// (spec §3, open question 2: the token-minting and activation bounds are
// unified on the looser of the two source bounds).
const startTimeTolerance = 1 * time.Minute

// Config carries the process-wide, immutable validation policy (spec §6).
type Config struct {
	MaxEntitlementsPerJitRequest int
	MinReviewers                 int
	MaxReviewers                 int
	MinDuration                  time.Duration
	MaxDuration                  time.Duration
	JustificationPattern         *regexp.Regexp
	JustificationHint            string
}

// Catalog is the subset of catalog.Catalog the activator depends on.
type Catalog interface {
	VerifyUserCanRequest(ctx context.Context, user accessmodel.UserId, request accessmodel.ActivationRequest) error
	VerifyUserCanApprove(ctx context.Context, approver accessmodel.UserId, request *accessmodel.MpaRequest) error
}

// Provisioner is the subset of provisioner.Provisioner the activator drives.
type Provisioner interface {
	AddProjectIamBinding(ctx context.Context, projectID accessmodel.ProjectId, binding provisioner.Binding, options []provisioner.Option, auditReason string) error
}

// Notifier dispatches state-transition notifications (C5). Failures are
// isolated by the implementation; the activator never fails a transition
// because a notification failed.
type Notifier interface {
	NotifyRequestActivation(ctx context.Context, req *accessmodel.MpaRequest)
	NotifyActivationApproved(ctx context.Context, req *accessmodel.MpaRequest, approver accessmodel.UserId)
	NotifyActivationSelfApproved(ctx context.Context, req *accessmodel.JitRequest)
}

// Activator is the C3 state machine.
type Activator struct {
	Catalog     Catalog
	Provisioner Provisioner
	Notifier    Notifier
	Clock       accessmodel.Clock
	Config      Config
	Log         logr.Logger
}

// validateJustification re-runs the justification policy (spec §4.3 steps
// 1/3, S7).
func (a *Activator) validateJustification(justification string) error {
	if a.Config.JustificationPattern != nil && !a.Config.JustificationPattern.MatchString(justification) {
		return accessmodel.New(accessmodel.AccessDenied, "justification does not match required pattern: %s", a.Config.JustificationHint)
	}
	return nil
}

func (a *Activator) validateStartTime(start time.Time) error {
	if start.Before(a.Clock.Now().Add(-startTimeTolerance)) {
		return accessmodel.New(accessmodel.InvalidArgument, "start time is too far in the past")
	}
	return nil
}

func (a *Activator) validateDuration(d time.Duration) error {
	if d < a.Config.MinDuration || d > a.Config.MaxDuration {
		return accessmodel.New(accessmodel.InvalidArgument, "duration %s is out of the allowed range [%s, %s]", d, a.Config.MinDuration, a.Config.MaxDuration)
	}
	return nil
}

// CreateJitRequest validates and constructs a JitRequest (spec §4.3). It
// does not verify eligibility — that is deferred to Activate.
func (a *Activator) CreateJitRequest(ctx context.Context, user accessmodel.UserId, entitlements []accessmodel.RoleBinding, justification string, start time.Time, duration time.Duration) (*accessmodel.JitRequest, error) {
	if len(entitlements) == 0 {
		return nil, accessmodel.New(accessmodel.InvalidArgument, "at least one entitlement is required")
	}
	if len(entitlements) > a.Config.MaxEntitlementsPerJitRequest {
		return nil, accessmodel.New(accessmodel.InvalidArgument, "at most %d entitlements are allowed per JIT request", a.Config.MaxEntitlementsPerJitRequest)
	}
	if err := a.validateStartTime(start); err != nil {
		return nil, err
	}
	if err := a.validateDuration(duration); err != nil {
		return nil, err
	}
	if justification == "" {
		return nil, accessmodel.New(accessmodel.InvalidArgument, "justification is required")
	}

	return &accessmodel.JitRequest{RequestCommon: accessmodel.RequestCommon{
		ID:             accessmodel.NewActivationId(accessmodel.SelfApproval),
		RequestingUser: user,
		Entitlements:   entitlements,
		Justification:  justification,
		StartTime:      start,
		Duration:       duration,
	}}, nil
}

// CreateMpaRequest validates and constructs an MpaRequest, pre-verifying
// eligibility so a token is never minted for a request that would later
// fail (spec §4.3).
func (a *Activator) CreateMpaRequest(ctx context.Context, user accessmodel.UserId, entitlement accessmodel.RoleBinding, reviewers []accessmodel.UserId, justification string, start time.Time, duration time.Duration) (*accessmodel.MpaRequest, error) {
	ctx, span := tracer.Start(ctx, "activation.CreateMpaRequest")
	defer span.End()

	if len(reviewers) < a.Config.MinReviewers || len(reviewers) > a.Config.MaxReviewers {
		return nil, accessmodel.New(accessmodel.InvalidArgument, "reviewer count %d is out of the allowed range [%d, %d]", len(reviewers), a.Config.MinReviewers, a.Config.MaxReviewers)
	}
	for _, r := range reviewers {
		if r.Equal(user) {
			return nil, accessmodel.New(accessmodel.InvalidArgument, "requesting user cannot be listed as their own reviewer")
		}
	}
	if err := a.validateStartTime(start); err != nil {
		return nil, err
	}
	if err := a.validateDuration(duration); err != nil {
		return nil, err
	}
	if err := a.validateJustification(justification); err != nil {
		return nil, err
	}

	req := &accessmodel.MpaRequest{
		RequestCommon: accessmodel.RequestCommon{
			ID:             accessmodel.NewActivationId(accessmodel.PeerApproval),
			RequestingUser: user,
			Entitlements:   []accessmodel.RoleBinding{entitlement},
			Justification:  justification,
			StartTime:      start,
			Duration:       duration,
		},
		Reviewers: reviewers,
	}

	if err := a.Catalog.VerifyUserCanRequest(ctx, user, req); err != nil {
		return nil, err
	}

	return req, nil
}

// Activate runs a JitRequest through validation and provisioning (spec
// §4.3's activate transition).
func (a *Activator) Activate(ctx context.Context, req *accessmodel.JitRequest) (*accessmodel.Activation, error) {
	ctx, span := tracer.Start(ctx, "activation.Activate")
	defer span.End()

	if err := a.validateJustification(req.Justification); err != nil {
		return nil, err
	}
	if err := a.Catalog.VerifyUserCanRequest(ctx, req.RequestingUser, req); err != nil {
		return nil, err
	}

	description := provisioner.SelfApprovedDescription(req.Justification)
	if err := a.provisionAll(ctx, req.RequestingUser, req.Entitlements, req.StartTime, req.EndTime(), description,
		[]provisioner.Option{provisioner.PurgeExistingTemporaryBindings}); err != nil {
		return nil, err
	}

	if a.Notifier != nil {
		a.Notifier.NotifyActivationSelfApproved(ctx, req)
	}

	return &accessmodel.Activation{Request: req, EndTime: req.EndTime()}, nil
}

// Approve runs an MpaRequest through its approval transition (spec §4.3's
// approve transition).
func (a *Activator) Approve(ctx context.Context, approver accessmodel.UserId, req *accessmodel.MpaRequest) (*accessmodel.Activation, error) {
	ctx, span := tracer.Start(ctx, "activation.Approve")
	defer span.End()

	if approver.Equal(req.RequestingUser) {
		return nil, accessmodel.New(accessmodel.AccessDenied, "the requesting user cannot approve their own request")
	}
	if !req.HasReviewer(approver) {
		return nil, accessmodel.New(accessmodel.AccessDenied, "approver is not a listed reviewer on this request")
	}
	if err := a.validateJustification(req.Justification); err != nil {
		return nil, err
	}
	if err := a.Catalog.VerifyUserCanRequest(ctx, req.RequestingUser, req); err != nil {
		return nil, err
	}
	if err := a.Catalog.VerifyUserCanApprove(ctx, approver, req); err != nil {
		return nil, err
	}

	description := provisioner.PeerApprovedDescription(approver, req.Justification)
	err := a.provisionAll(ctx, req.RequestingUser, req.Entitlements, req.StartTime, req.EndTime(), description,
		[]provisioner.Option{provisioner.PurgeExistingTemporaryBindings, provisioner.FailIfBindingExists})
	if err != nil && accessmodel.KindOf(err) == accessmodel.AlreadyExists {
		// Concurrent approval race: the other reviewer's write already
		// landed the identical binding (spec §4.3, S4). Treat as success.
		a.Log.V(1).Info("concurrent approval observed AlreadyExists, treating as success",
			"request", req.ID, "approver", approver.Email)
		err = nil
	}
	if err != nil {
		return nil, err
	}

	if a.Notifier != nil {
		a.Notifier.NotifyActivationApproved(ctx, req, approver)
	}

	return &accessmodel.Activation{Request: req, EndTime: req.EndTime()}, nil
}

// NotifyTokenIssued notifies req's reviewers once a token has been minted.
// Token signing itself lives in package tokens, outside the activator, to
// avoid a dependency cycle; callers sign first, then invoke this.
func (a *Activator) NotifyTokenIssued(ctx context.Context, req *accessmodel.MpaRequest) {
	if a.Notifier != nil {
		a.Notifier.NotifyRequestActivation(ctx, req)
	}
}

// provisionAll writes one activation binding per entitlement (spec §4.3's
// provisioning contract: atomic per entitlement, not across the whole
// request).
func (a *Activator) provisionAll(ctx context.Context, requester accessmodel.UserId, entitlements []accessmodel.RoleBinding, start, end time.Time, description string, options []provisioner.Option) error {
	for _, entitlement := range entitlements {
		projectID, ok := accessmodel.ParseProjectFullResourceName(entitlement.Resource)
		if !ok {
			return accessmodel.New(accessmodel.InvalidArgument, "entitlement resource %q is not a bare project", entitlement.Resource)
		}
		binding, err := provisioner.BuildActivationBinding(requester, entitlement, start, end, description)
		if err != nil {
			return err
		}
		err = a.Provisioner.AddProjectIamBinding(ctx, projectID, binding, options, description)
		if err != nil {
			return err
		}
	}
	return nil
}
