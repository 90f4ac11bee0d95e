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

// Package catalog implements the Role Catalog (C2): the query-facing façade
// that lists projects, eligibilities, and candidate reviewers for a user,
// and the two guard checks (verifyUserCanRequest, verifyUserCanApprove) the
// activator relies on before provisioning.
package catalog

import (
	"context"
	"sort"

	"github.com/go-logr/logr"

	"github.com/qen-cloud/jitaccess/internal/accessmodel"
)

// Analyzer is the subset of policyanalyzer.Analyzer the catalog depends on.
type Analyzer interface {
	FindProjectsWithEligibilities(ctx context.Context, user accessmodel.UserId) ([]accessmodel.ProjectId, error)
	FindEligibilities(ctx context.Context, user accessmodel.UserId, projectID accessmodel.ProjectId, types []accessmodel.ActivationType, statuses []accessmodel.EligibilityStatus) (accessmodel.EligibilitySet, error)
	FindReviewers(ctx context.Context, projectID accessmodel.ProjectId, role string, requester accessmodel.UserId) ([]accessmodel.UserId, error)
}

// ProjectSearcher is the resource-manager search path listProjects takes
// when a project query string is configured, bypassing policy analysis
// entirely (spec §4.2).
type ProjectSearcher interface {
	SearchProjectIds(ctx context.Context, query string) ([]accessmodel.ProjectId, error)
}

// Catalog is the C2 façade.
type Catalog struct {
	Analyzer     Analyzer
	Searcher     ProjectSearcher
	ProjectQuery string
	Log          logr.Logger
}

// New constructs a Catalog. searcher and projectQuery may be left zero;
// ListProjects falls back to analyzer-backed discovery when projectQuery is
// empty.
func New(analyzer Analyzer, searcher ProjectSearcher, projectQuery string, log logr.Logger) *Catalog {
	return &Catalog{Analyzer: analyzer, Searcher: searcher, ProjectQuery: projectQuery, Log: log}
}

// ListProjects returns the sorted set of projects the user can see, per
// spec §4.2's two modes.
func (c *Catalog) ListProjects(ctx context.Context, user accessmodel.UserId) ([]accessmodel.ProjectId, error) {
	if c.ProjectQuery != "" {
		if c.Searcher == nil {
			return nil, accessmodel.New(accessmodel.Transient, "projectQuery is configured but no resource-manager searcher is wired")
		}
		projects, err := c.Searcher.SearchProjectIds(ctx, c.ProjectQuery)
		if err != nil {
			return nil, err
		}
		sort.Slice(projects, func(i, j int) bool { return projects[i] < projects[j] })
		return projects, nil
	}
	return c.Analyzer.FindProjectsWithEligibilities(ctx, user)
}

// ListEligibilities returns every eligibility (available or active, self or
// peer) the user holds on projectID.
func (c *Catalog) ListEligibilities(ctx context.Context, user accessmodel.UserId, projectID accessmodel.ProjectId) (accessmodel.EligibilitySet, error) {
	return c.Analyzer.FindEligibilities(ctx, user, projectID,
		[]accessmodel.ActivationType{accessmodel.SelfApproval, accessmodel.PeerApproval},
		[]accessmodel.EligibilityStatus{accessmodel.Available, accessmodel.Active})
}

// ListReviewers returns the sorted set of users who can approve an
// activation of eligibility for requestingUser, excluding requestingUser
// itself. Precondition: requestingUser must itself hold eligibility of the
// same type on the same role binding (spec §4.2).
func (c *Catalog) ListReviewers(ctx context.Context, requestingUser accessmodel.UserId, eligibility accessmodel.Eligibility) ([]accessmodel.UserId, error) {
	projectID, ok := accessmodel.ParseProjectFullResourceName(eligibility.RoleBinding.Resource)
	if !ok {
		return nil, accessmodel.New(accessmodel.InvalidArgument, "role binding resource %q is not a bare project", eligibility.RoleBinding.Resource)
	}

	own, err := c.Analyzer.FindEligibilities(ctx, requestingUser, projectID,
		[]accessmodel.ActivationType{eligibility.ActivationType}, nil)
	if err != nil {
		return nil, err
	}
	if _, ok := own.Find(eligibility.RoleBinding, eligibility.ActivationType); !ok {
		return nil, accessmodel.NewWithRole(accessmodel.AccessDenied, eligibility.RoleBinding.Role,
			"requesting user is not eligible for this role binding")
	}

	reviewers, err := c.Analyzer.FindReviewers(ctx, projectID, eligibility.RoleBinding.Role, requestingUser)
	if err != nil {
		return nil, err
	}

	out := reviewers[:0:0]
	for _, r := range reviewers {
		if r.Email == requestingUser.Email {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// VerifyUserCanRequest re-runs eligibility discovery to confirm user still
// qualifies for every entitlement in request under the request's activation
// type (spec §4.2, §4.3 step 2/4).
func (c *Catalog) VerifyUserCanRequest(ctx context.Context, user accessmodel.UserId, request accessmodel.ActivationRequest) error {
	for _, entitlement := range request.Common().Entitlements {
		projectID, ok := accessmodel.ParseProjectFullResourceName(entitlement.Resource)
		if !ok {
			return accessmodel.New(accessmodel.InvalidArgument, "entitlement resource %q is not a bare project", entitlement.Resource)
		}
		set, err := c.Analyzer.FindEligibilities(ctx, user, projectID, []accessmodel.ActivationType{request.Kind()}, nil)
		if err != nil {
			return err
		}
		if _, ok := set.Find(entitlement, request.Kind()); !ok {
			return accessmodel.NewWithRole(accessmodel.AccessDenied, entitlement.Role,
				"user is no longer eligible to activate this role")
		}
	}
	return nil
}

// VerifyUserCanApprove checks that approver both holds the reviewer-granting
// eligibility for the request's single entitlement and is explicitly listed
// as a reviewer on the request (spec §4.2).
func (c *Catalog) VerifyUserCanApprove(ctx context.Context, approver accessmodel.UserId, request *accessmodel.MpaRequest) error {
	if !request.HasReviewer(approver) {
		return accessmodel.NewWithRole(accessmodel.AccessDenied, "", "approver is not a listed reviewer on this request")
	}
	if len(request.Entitlements) != 1 {
		return accessmodel.New(accessmodel.InvalidArgument, "mpa request must carry exactly one entitlement")
	}
	entitlement := request.Entitlements[0]
	projectID, ok := accessmodel.ParseProjectFullResourceName(entitlement.Resource)
	if !ok {
		return accessmodel.New(accessmodel.InvalidArgument, "entitlement resource %q is not a bare project", entitlement.Resource)
	}
	set, err := c.Analyzer.FindEligibilities(ctx, approver, projectID, []accessmodel.ActivationType{accessmodel.PeerApproval}, nil)
	if err != nil {
		return err
	}
	if _, ok := set.Find(entitlement, accessmodel.PeerApproval); !ok {
		return accessmodel.NewWithRole(accessmodel.AccessDenied, entitlement.Role,
			"approver is not eligible for peer-approval on this role")
	}
	return nil
}
