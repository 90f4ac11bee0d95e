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

package policyanalyzer

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/qen-cloud/jitaccess/internal/accessmodel"
	"github.com/qen-cloud/jitaccess/internal/celcond"
)

var tracer = otel.Tracer("github.com/qen-cloud/jitaccess/internal/policyanalyzer")

// Analyzer discovers eligibilities by querying a Client and recognizing the
// marker and activation-window conditions via package celcond.
type Analyzer struct {
	Client  Client
	Scope   string
	Timeout time.Duration
	Log     logr.Logger
}

// NewAnalyzer constructs an Analyzer with the spec's default 30s analyzer
// call deadline (spec §5).
func NewAnalyzer(client Client, scope string, log logr.Logger) *Analyzer {
	return &Analyzer{Client: client, Scope: scope, Timeout: 30 * time.Second, Log: log}
}

func userMember(user accessmodel.UserId) string {
	return "user:" + user.Email
}

// FindProjectsWithEligibilities returns, sorted, every project the user has
// at least one eligible or active binding on.
func (a *Analyzer) FindProjectsWithEligibilities(ctx context.Context, user accessmodel.UserId) ([]accessmodel.ProjectId, error) {
	ctx, span := tracer.Start(ctx, "policyanalyzer.FindProjectsWithEligibilities",
		trace.WithAttributes(attribute.String("user", user.Email)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	results, warnings, err := a.Client.FindAccessibleResourcesByUser(ctx, a.Scope, userMember(user), "", "", true)
	if err != nil {
		span.RecordError(err)
		return nil, accessmodel.New(accessmodel.Transient, "policy analyzer query failed: %v", err)
	}
	for _, w := range warnings {
		a.Log.Info("policy analyzer warning", "warning", w)
	}

	projects := make(map[accessmodel.ProjectId]bool)
	for _, result := range results {
		if result.Binding.Condition == nil {
			continue
		}
		if celcond.ClassifyMarker(result.Binding.Condition.Expression) == celcond.NoMarker &&
			!celcond.IsActivationTitle(result.Binding.Condition.Title) {
			continue
		}
		for _, acl := range result.ACLs {
			if acl.Evaluation == EvalFalse {
				continue
			}
			for _, resource := range acl.Resources {
				projectID, ok := accessmodel.ParseProjectFullResourceName(resource)
				if !ok {
					continue
				}
				projects[projectID] = true
			}
		}
	}

	out := make([]accessmodel.ProjectId, 0, len(projects))
	for p := range projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// FindEligibilities returns the merged eligibility set for user within
// projectId, optionally narrowed to the given activation types and
// statuses. An empty types or statuses slice means "any".
func (a *Analyzer) FindEligibilities(
	ctx context.Context,
	user accessmodel.UserId,
	projectID accessmodel.ProjectId,
	types []accessmodel.ActivationType,
	statuses []accessmodel.EligibilityStatus,
) (accessmodel.EligibilitySet, error) {
	ctx, span := tracer.Start(ctx, "policyanalyzer.FindEligibilities",
		trace.WithAttributes(attribute.String("user", user.Email), attribute.String("project", string(projectID))))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	results, warnings, err := a.Client.FindAccessibleResourcesByUser(ctx, a.Scope, userMember(user), "", projectID.FullResourceName(), true)
	if err != nil {
		span.RecordError(err)
		return accessmodel.EligibilitySet{}, accessmodel.New(accessmodel.Transient, "policy analyzer query failed: %v", err)
	}

	merged := mergeEligibilities(results, userMember(user), projectID)
	merged.Warnings = append(merged.Warnings, warnings...)

	return merged.Filter(types, statuses), nil
}

// FindReviewers returns every user principal holding role on the project,
// excluding the requesting user, for MPA reviewer discovery.
func (a *Analyzer) FindReviewers(ctx context.Context, projectID accessmodel.ProjectId, role string, requester accessmodel.UserId) ([]accessmodel.UserId, error) {
	ctx, span := tracer.Start(ctx, "policyanalyzer.FindReviewers")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	principals, warnings, err := a.Client.FindPermissionedPrincipalsByResource(ctx, a.Scope, projectID.FullResourceName(), role)
	if err != nil {
		span.RecordError(err)
		return nil, accessmodel.New(accessmodel.Transient, "policy analyzer query failed: %v", err)
	}
	for _, w := range warnings {
		a.Log.Info("policy analyzer warning", "warning", w)
	}

	requesterMember := userMember(requester)
	reviewers := make([]accessmodel.UserId, 0, len(principals))
	for _, p := range principals {
		email, ok := strings.CutPrefix(p, "user:")
		if !ok {
			continue // skip groups and service accounts, reviewers must be individual users
		}
		if p == requesterMember {
			continue
		}
		reviewers = append(reviewers, accessmodel.UserId{Email: email})
	}
	sort.Slice(reviewers, func(i, j int) bool { return reviewers[i].Email < reviewers[j].Email })
	return reviewers, nil
}
