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

package catalog

import (
	"context"
	"testing"

	"github.com/go-logr/logr"

	"github.com/qen-cloud/jitaccess/internal/accessmodel"
)

type fakeAnalyzer struct {
	projects    []accessmodel.ProjectId
	eligSet     accessmodel.EligibilitySet
	reviewers   []accessmodel.UserId
	eligErr     error
	reviewerErr error
}

func (f *fakeAnalyzer) FindProjectsWithEligibilities(ctx context.Context, user accessmodel.UserId) ([]accessmodel.ProjectId, error) {
	return f.projects, nil
}

func (f *fakeAnalyzer) FindEligibilities(ctx context.Context, user accessmodel.UserId, projectID accessmodel.ProjectId, types []accessmodel.ActivationType, statuses []accessmodel.EligibilityStatus) (accessmodel.EligibilitySet, error) {
	if f.eligErr != nil {
		return accessmodel.EligibilitySet{}, f.eligErr
	}
	return f.eligSet.Filter(types, statuses), nil
}

func (f *fakeAnalyzer) FindReviewers(ctx context.Context, projectID accessmodel.ProjectId, role string, requester accessmodel.UserId) ([]accessmodel.UserId, error) {
	return f.reviewers, f.reviewerErr
}

func alice() accessmodel.UserId { return accessmodel.UserId{Email: "alice@example.com"} }
func bob() accessmodel.UserId   { return accessmodel.UserId{Email: "bob@example.com"} }

func TestListReviewersExcludesRequester(t *testing.T) {
	binding := accessmodel.RoleBinding{Resource: accessmodel.ProjectId("proj-1").FullResourceName(), Role: "roles/editor"}
	elig := accessmodel.Eligibility{RoleBinding: binding, ActivationType: accessmodel.PeerApproval, Status: accessmodel.Available}

	a := &fakeAnalyzer{
		eligSet:   accessmodel.EligibilitySet{Items: []accessmodel.Eligibility{elig}},
		reviewers: []accessmodel.UserId{alice(), bob()},
	}
	c := New(a, nil, "", logr.Discard())

	reviewers, err := c.ListReviewers(context.Background(), alice(), elig)
	if err != nil {
		t.Fatalf("ListReviewers: %v", err)
	}
	if len(reviewers) != 1 || reviewers[0].Email != "bob@example.com" {
		t.Fatalf("got %+v, want only bob", reviewers)
	}
}

func TestListReviewersRejectsIneligibleRequester(t *testing.T) {
	binding := accessmodel.RoleBinding{Resource: accessmodel.ProjectId("proj-1").FullResourceName(), Role: "roles/editor"}
	elig := accessmodel.Eligibility{RoleBinding: binding, ActivationType: accessmodel.PeerApproval, Status: accessmodel.Available}

	a := &fakeAnalyzer{eligSet: accessmodel.EligibilitySet{}}
	c := New(a, nil, "", logr.Discard())

	_, err := c.ListReviewers(context.Background(), alice(), elig)
	if accessmodel.KindOf(err) != accessmodel.AccessDenied {
		t.Fatalf("expected AccessDenied, got %v", err)
	}
}

func TestVerifyUserCanRequestRejectsMissingEligibility(t *testing.T) {
	binding := accessmodel.RoleBinding{Resource: accessmodel.ProjectId("proj-1").FullResourceName(), Role: "roles/editor"}
	a := &fakeAnalyzer{eligSet: accessmodel.EligibilitySet{}}
	c := New(a, nil, "", logr.Discard())

	req := &accessmodel.JitRequest{RequestCommon: accessmodel.RequestCommon{
		RequestingUser: alice(),
		Entitlements:   []accessmodel.RoleBinding{binding},
	}}

	err := c.VerifyUserCanRequest(context.Background(), alice(), req)
	if accessmodel.KindOf(err) != accessmodel.AccessDenied {
		t.Fatalf("expected AccessDenied, got %v", err)
	}
}

func TestVerifyUserCanRequestAcceptsHeldEligibility(t *testing.T) {
	binding := accessmodel.RoleBinding{Resource: accessmodel.ProjectId("proj-1").FullResourceName(), Role: "roles/editor"}
	elig := accessmodel.Eligibility{RoleBinding: binding, ActivationType: accessmodel.SelfApproval, Status: accessmodel.Available}
	a := &fakeAnalyzer{eligSet: accessmodel.EligibilitySet{Items: []accessmodel.Eligibility{elig}}}
	c := New(a, nil, "", logr.Discard())

	req := &accessmodel.JitRequest{RequestCommon: accessmodel.RequestCommon{
		RequestingUser: alice(),
		Entitlements:   []accessmodel.RoleBinding{binding},
	}}

	if err := c.VerifyUserCanRequest(context.Background(), alice(), req); err != nil {
		t.Fatalf("VerifyUserCanRequest: %v", err)
	}
}

func TestVerifyUserCanApproveRejectsNonReviewer(t *testing.T) {
	binding := accessmodel.RoleBinding{Resource: accessmodel.ProjectId("proj-1").FullResourceName(), Role: "roles/editor"}
	a := &fakeAnalyzer{}
	c := New(a, nil, "", logr.Discard())

	req := &accessmodel.MpaRequest{
		RequestCommon: accessmodel.RequestCommon{RequestingUser: alice(), Entitlements: []accessmodel.RoleBinding{binding}},
		Reviewers:     []accessmodel.UserId{bob()},
	}

	err := c.VerifyUserCanApprove(context.Background(), accessmodel.UserId{Email: "carol@example.com"}, req)
	if accessmodel.KindOf(err) != accessmodel.AccessDenied {
		t.Fatalf("expected AccessDenied for a non-reviewer approver, got %v", err)
	}
}

func TestVerifyUserCanApproveRejectsReviewerWithoutOwnEligibility(t *testing.T) {
	binding := accessmodel.RoleBinding{Resource: accessmodel.ProjectId("proj-1").FullResourceName(), Role: "roles/editor"}
	a := &fakeAnalyzer{eligSet: accessmodel.EligibilitySet{}}
	c := New(a, nil, "", logr.Discard())

	req := &accessmodel.MpaRequest{
		RequestCommon: accessmodel.RequestCommon{RequestingUser: alice(), Entitlements: []accessmodel.RoleBinding{binding}},
		Reviewers:     []accessmodel.UserId{bob()},
	}

	err := c.VerifyUserCanApprove(context.Background(), bob(), req)
	if accessmodel.KindOf(err) != accessmodel.AccessDenied {
		t.Fatalf("expected AccessDenied, got %v", err)
	}
}

func TestListProjectsUsesSearcherWhenQueryConfigured(t *testing.T) {
	searcher := &fakeSearcher{projects: []accessmodel.ProjectId{"zeta", "alpha"}}
	c := New(&fakeAnalyzer{}, searcher, "labels.team:platform", logr.Discard())

	projects, err := c.ListProjects(context.Background(), alice())
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(projects) != 2 || projects[0] != "alpha" || projects[1] != "zeta" {
		t.Fatalf("got %v, want sorted [alpha zeta]", projects)
	}
}

type fakeSearcher struct{ projects []accessmodel.ProjectId }

func (f *fakeSearcher) SearchProjectIds(ctx context.Context, query string) ([]accessmodel.ProjectId, error) {
	return f.projects, nil
}
