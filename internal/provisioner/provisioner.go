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

// Package provisioner implements the IAM Provisioner (C6): writing
// time-conditioned role bindings onto a project's IAM policy with
// purge/replace semantics and etag-based optimistic concurrency.
package provisioner

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/qen-cloud/jitaccess/internal/accessmodel"
	"github.com/qen-cloud/jitaccess/internal/celcond"
)

var tracer = otel.Tracer("github.com/qen-cloud/jitaccess/internal/provisioner")

// Option is one of the two provisioning policy flags spec §4.6 defines.
type Option int

const (
	// PurgeExistingTemporaryBindings removes every binding whose condition
	// title equals the reserved activation title and whose single member
	// equals the new binding's member, before adding the new one.
	PurgeExistingTemporaryBindings Option = iota
	// FailIfBindingExists makes the add a strict insert: the call reports
	// AlreadyExists if a binding with identical member set, role, and
	// condition expression is already present.
	FailIfBindingExists
)

// Binding is the policy entry the provisioner writes: a single member, a
// role, and the reserved activation condition.
type Binding struct {
	Member      string
	Role        string
	Title       string
	Description string
	Expression  string
}

// Policy is the minimal shape of an IAM policy the provisioner reasons
// about: an opaque optimistic-concurrency token plus the bindings relevant
// to the member/role pairs it touches. Real policies carry many more
// bindings; IAMClient is responsible for read-modify-write over the whole
// document, this type only models what the provisioner needs to see.
type Policy struct {
	Etag     string
	Bindings []Binding
}

// IAMClient is the external resource-manager client (spec §6): read the
// current policy, then perform an optimistic-concurrency write keyed by
// etag.
type IAMClient interface {
	GetIamPolicy(ctx context.Context, projectID accessmodel.ProjectId) (Policy, error)
	SetIamPolicy(ctx context.Context, projectID accessmodel.ProjectId, policy Policy, auditReason string) error
}

func hasOption(opts []Option, want Option) bool {
	for _, o := range opts {
		if o == want {
			return true
		}
	}
	return false
}

// Provisioner writes activation bindings (spec §4.6).
type Provisioner struct {
	Client  IAMClient
	Log     logr.Logger
	Backoff func() backoff.BackOff
}

// New constructs a Provisioner with a default bounded exponential back-off
// for etag-conflict retries.
func New(client IAMClient, log logr.Logger) *Provisioner {
	return &Provisioner{
		Client: client,
		Log:    log,
		Backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			b.MaxElapsedTime = 10 * time.Second
			return b
		},
	}
}

// AddProjectIamBinding applies binding to projectID under options (spec
// §4.6). It retries on etag conflicts with bounded back-off, surfacing
// Conflict once the retry budget is exhausted.
func (p *Provisioner) AddProjectIamBinding(ctx context.Context, projectID accessmodel.ProjectId, binding Binding, options []Option, auditReason string) error {
	ctx, span := tracer.Start(ctx, "provisioner.AddProjectIamBinding",
		trace.WithAttributes(
			attribute.String("project", string(projectID)),
			attribute.String("role", binding.Role),
		))
	defer span.End()

	operation := func() error {
		policy, err := p.Client.GetIamPolicy(ctx, projectID)
		if err != nil {
			return backoff.Permanent(accessmodel.New(accessmodel.Transient, "reading IAM policy failed: %v", err))
		}

		if hasOption(options, FailIfBindingExists) {
			if bindingExists(policy, binding) {
				return backoff.Permanent(accessmodel.NewWithRole(accessmodel.AlreadyExists, binding.Role,
					"a binding with identical member, role, and condition already exists"))
			}
		}

		next := policy.Bindings
		if hasOption(options, PurgeExistingTemporaryBindings) {
			next = purgeActivationBindings(next, binding.Member)
		}
		next = append(next, binding)

		err = p.Client.SetIamPolicy(ctx, projectID, Policy{Etag: policy.Etag, Bindings: next}, auditReason)
		if err == nil {
			return nil
		}
		if accessmodel.KindOf(err) == accessmodel.Conflict {
			return err // etag conflict: retryable
		}
		return backoff.Permanent(err)
	}

	err := backoff.Retry(operation, backoff.WithContext(p.Backoff(), ctx))
	if err == nil {
		return nil
	}
	if accessmodel.KindOf(err) != "" {
		return err
	}
	span.RecordError(err)
	return accessmodel.New(accessmodel.Conflict, "exhausted etag retries: %v", err)
}

// bindingExists reports whether a binding with an identical member set,
// role, and condition expression is already present.
func bindingExists(policy Policy, want Binding) bool {
	for _, b := range policy.Bindings {
		if b.Member == want.Member && b.Role == want.Role && b.Expression == want.Expression {
			return true
		}
	}
	return false
}

// purgeActivationBindings drops every binding whose condition carries the
// reserved activation title and whose sole member equals member, regardless
// of whether its window has already expired (spec §4.6).
func purgeActivationBindings(bindings []Binding, member string) []Binding {
	out := bindings[:0:0]
	for _, b := range bindings {
		if b.Member == member && celcond.IsActivationTitle(b.Title) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// BuildActivationBinding constructs the binding a successful activate/
// approve call writes for one entitlement (spec §4.3's provisioning
// contract).
func BuildActivationBinding(requester accessmodel.UserId, entitlement accessmodel.RoleBinding, start, end time.Time, description string) (Binding, error) {
	expr, err := celcond.BuildActivationExpression(start, end)
	if err != nil {
		return Binding{}, err
	}
	return Binding{
		Member:      requester.Member(),
		Role:        entitlement.Role,
		Title:       celcond.ActivationTitle,
		Description: description,
		Expression:  expr,
	}, nil
}

// SelfApprovedDescription renders the JIT provisioning description (spec
// §4.3).
func SelfApprovedDescription(justification string) string {
	return fmt.Sprintf("Self-approved, justification: %s", justification)
}

// PeerApprovedDescription renders the MPA provisioning description (spec
// §4.3).
func PeerApprovedDescription(approver accessmodel.UserId, justification string) string {
	return fmt.Sprintf("Approved by %s, justification: %s", approver.Email, justification)
}
