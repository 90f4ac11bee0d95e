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

// Package accessengine is the composition root (C0): it wires the policy
// analyzer, catalog, activator, token signer/verifier, notification
// dispatcher, provisioner, metrics, and audit log into a single immutable
// Engine exposing the inbound operations spec §6 names, matching the
// control plane's own wiring style.
package accessengine

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/qen-cloud/jitaccess/internal/accessmodel"
	"github.com/qen-cloud/jitaccess/internal/activation"
	"github.com/qen-cloud/jitaccess/internal/audit"
	"github.com/qen-cloud/jitaccess/internal/catalog"
	"github.com/qen-cloud/jitaccess/internal/config"
	"github.com/qen-cloud/jitaccess/internal/metrics"
	"github.com/qen-cloud/jitaccess/internal/notify"
	"github.com/qen-cloud/jitaccess/internal/policyanalyzer"
	"github.com/qen-cloud/jitaccess/internal/provisioner"
	"github.com/qen-cloud/jitaccess/internal/tokens"
)

// Engine is the assembled core: every inbound operation from spec §6 is a
// method on this type, and every outbound collaborator (policy-analysis
// client, IAM client, credentials, mail/webhook transports) is injected at
// construction, never reached for directly.
type Engine struct {
	Catalog   *catalog.Catalog
	Activator *activation.Activator
	Signer    *tokens.Signer
	Verifier  *tokens.Verifier
	Notify    *notify.Dispatcher
	Metrics   *metrics.Metrics
	Audit     *audit.Log
	Clock     accessmodel.Clock
	Log       logr.Logger
}

// Dependencies bundles every outbound collaborator the engine needs built
// from the outside: the policy-analysis client, the IAM client, the
// signing credentials, and (optionally) a resource-manager project
// searcher. Deployment-specific adapters implement these against the real
// cloud APIs; tests and jitaccessctl's demo mode use in-memory fakes.
type Dependencies struct {
	PolicyAnalyzerClient policyanalyzer.Client
	IAMClient            provisioner.IAMClient
	Credentials          tokens.Credentials
	ProjectSearcher      catalog.ProjectSearcher
	Clock                accessmodel.Clock
	Registerer           prometheus.Registerer
}

// New assembles an Engine from cfg and deps, following the composition
// root's convention of building every layer bottom-up and injecting it
// into the next (spec §6's component graph).
func New(cfg config.Config, deps Dependencies, log logr.Logger) (*Engine, error) {
	clock := deps.Clock
	if clock == nil {
		clock = accessmodel.SystemClock{}
	}

	justification, err := cfg.JustificationRegexp()
	if err != nil {
		return nil, err
	}

	analyzer := policyanalyzer.NewAnalyzer(deps.PolicyAnalyzerClient, cfg.Scope, log.WithName("policyanalyzer"))
	cat := catalog.New(analyzer, deps.ProjectSearcher, cfg.ProjectQuery, log.WithName("catalog"))
	prov := provisioner.New(deps.IAMClient, log.WithName("provisioner"))

	renderer, err := notificationRenderer(cfg)
	if err != nil {
		return nil, err
	}
	transports := []notify.Transport{
		notify.NewMailTransport(cfg.SMTPHost, cfg.SMTPPort, cfg.ServiceAccount, "", "", cfg.EnableEmail),
		notify.NewLoggingTransport(log.WithName("notify")),
	}
	if cfg.SlackWebhookURL != "" {
		transports = append(transports, notify.NewSlackTransport(cfg.SlackWebhookURL))
	}
	if cfg.NotifyWebhookURL != "" {
		transports = append(transports, notify.NewWebhookTransport(cfg.NotifyWebhookURL, nil))
	}
	dispatcher := notify.NewDispatcher(renderer, transports, log.WithName("notify"))
	activatorNotifier := &notify.ActivatorNotifier{Dispatcher: dispatcher}

	activator := &activation.Activator{
		Catalog:     cat,
		Provisioner: prov,
		Notifier:    activatorNotifier,
		Clock:       clock,
		Log:         log.WithName("activation"),
		Config: activation.Config{
			MaxEntitlementsPerJitRequest: cfg.MaxEntitlementsPerJitRequest,
			MinReviewers:                 cfg.MinReviewers,
			MaxReviewers:                 cfg.MaxReviewers,
			MinDuration:                  time.Duration(cfg.MinActivationDuration),
			MaxDuration:                  time.Duration(cfg.MaxActivationDuration),
			JustificationPattern:         justification,
			JustificationHint:            cfg.JustificationHint,
		},
	}

	signer := tokens.NewSigner(deps.Credentials, cfg.ServiceAccount, clock, time.Duration(cfg.TokenValidity))
	verifier := tokens.NewVerifier(deps.Credentials, cfg.ServiceAccount, clock)

	registerer := deps.Registerer
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}

	return &Engine{
		Catalog:   cat,
		Activator: activator,
		Signer:    signer,
		Verifier:  verifier,
		Notify:    dispatcher,
		Metrics:   metrics.NewMetrics(registerer),
		Audit:     audit.NewLog(1000, clock),
		Clock:     clock,
		Log:       log,
	}, nil
}

func notificationRenderer(cfg config.Config) (*notify.Renderer, error) {
	if cfg.EmailTemplatePath != "" {
		return notify.NewRenderer(cfg.EmailTemplatePath)
	}
	return notify.NewRendererFromString(defaultTemplate), nil
}

const defaultTemplate = `<html><body>
<p>Beneficiary: {{BENEFICIARY}}</p>
<p>Resource: {{RESOURCE}}</p>
<p>Role: {{ROLE}}</p>
<p>Justification: {{JUSTIFICATION}}</p>
<p>Window: {{START}} - {{END}}</p>
</body></html>`

// ListProjects is the listProjects inbound operation (spec §6).
func (e *Engine) ListProjects(ctx context.Context, user accessmodel.UserId) ([]accessmodel.ProjectId, error) {
	return e.Catalog.ListProjects(ctx, user)
}

// ListEligibilities is the listEligibilities inbound operation (spec §6).
func (e *Engine) ListEligibilities(ctx context.Context, user accessmodel.UserId, project accessmodel.ProjectId) (accessmodel.EligibilitySet, error) {
	return e.Catalog.ListEligibilities(ctx, user, project)
}

// ListReviewers is the listReviewers inbound operation (spec §6).
func (e *Engine) ListReviewers(ctx context.Context, user accessmodel.UserId, eligibility accessmodel.Eligibility) ([]accessmodel.UserId, error) {
	return e.Catalog.ListReviewers(ctx, user, eligibility)
}

// CreateJitRequest is the createJitRequest inbound operation (spec §6).
func (e *Engine) CreateJitRequest(ctx context.Context, user accessmodel.UserId, entitlements []accessmodel.RoleBinding, justification string, start time.Time, duration time.Duration) (*accessmodel.JitRequest, error) {
	req, err := e.Activator.CreateJitRequest(ctx, user, entitlements, justification, start, duration)
	if err == nil {
		e.recordRequestCreated(req.ID, user, req.Entitlements)
	}
	return req, err
}

// CreateMpaRequest is the createMpaRequest inbound operation (spec §6).
func (e *Engine) CreateMpaRequest(ctx context.Context, user accessmodel.UserId, entitlement accessmodel.RoleBinding, reviewers []accessmodel.UserId, justification string, start time.Time, duration time.Duration) (*accessmodel.MpaRequest, error) {
	req, err := e.Activator.CreateMpaRequest(ctx, user, entitlement, reviewers, justification, start, duration)
	if err == nil {
		e.recordRequestCreated(req.ID, user, req.Entitlements)
	}
	return req, err
}

// Activate is the activate inbound operation for a JIT request (spec §6).
func (e *Engine) Activate(ctx context.Context, req *accessmodel.JitRequest) (*accessmodel.Activation, error) {
	started := e.Clock.Now()
	act, err := e.Activator.Activate(ctx, req)
	e.observeActivation(string(accessmodel.SelfApproval), started, err)
	if err == nil {
		e.Audit.Record(audit.Event{Type: audit.EventActivationApplied, ActorID: req.RequestingUser.Email, RequestID: req.ID})
	}
	return act, err
}

// SignToken is the signToken inbound operation: mints an activation token
// for an MPA request, notifying its reviewers once signed (spec §4.4).
func (e *Engine) SignToken(ctx context.Context, req *accessmodel.MpaRequest) (string, time.Time, time.Time, error) {
	token, issuedAt, expiresAt, err := e.Signer.Sign(ctx, req)
	if err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	e.Metrics.ObserveTokenIssued()
	e.Audit.Record(audit.Event{Type: audit.EventTokenIssued, ActorID: req.RequestingUser.Email, RequestID: req.ID})
	e.Activator.NotifyTokenIssued(ctx, req)
	return token, issuedAt, expiresAt, nil
}

// VerifyToken is the verifyToken inbound operation (spec §4.4).
func (e *Engine) VerifyToken(ctx context.Context, token string) (tokens.Claims, error) {
	claims, err := e.Verifier.Verify(ctx, token)
	outcome := "ok"
	eventType := audit.EventTokenVerified
	if err != nil {
		outcome = string(accessmodel.KindOf(err))
		eventType = audit.EventTokenRejected
	}
	e.Metrics.ObserveTokenVerify(outcome)
	e.Audit.Record(audit.Event{Type: eventType, RequestID: claims.JTI})
	return claims, err
}

// Approve is the approve inbound operation for an MPA request (spec §6).
func (e *Engine) Approve(ctx context.Context, approver accessmodel.UserId, req *accessmodel.MpaRequest) (*accessmodel.Activation, error) {
	started := e.Clock.Now()
	act, err := e.Activator.Approve(ctx, approver, req)
	e.observeActivation(string(accessmodel.PeerApproval), started, err)
	if err == nil {
		e.Audit.Record(audit.Event{Type: audit.EventApprovalApplied, ActorID: approver.Email, RequestID: req.ID})
	}
	return act, err
}

func (e *Engine) observeActivation(activationType string, started time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = string(accessmodel.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
		if accessmodel.KindOf(err) == accessmodel.Conflict {
			e.Metrics.ObserveProvisioningConflict()
		}
	}
	e.Metrics.ObserveActivation(activationType, outcome, e.Clock.Now().Sub(started))
}

func (e *Engine) recordRequestCreated(id accessmodel.ActivationId, user accessmodel.UserId, entitlements []accessmodel.RoleBinding) {
	role := ""
	if len(entitlements) > 0 {
		role = entitlements[0].Role
	}
	e.Audit.Record(audit.Event{Type: audit.EventRequestCreated, ActorID: user.Email, RequestID: id, Role: role})
}

// Recent exposes the engine's in-memory audit trail for diagnostics.
func (e *Engine) Recent(n int) []audit.Event {
	return e.Audit.Recent(n)
}
