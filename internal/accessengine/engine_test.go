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

package accessengine

import (
	"context"
	"testing"
	"time"

	"github.com/go-logr/logr"

	"github.com/qen-cloud/jitaccess/internal/accessmodel"
	"github.com/qen-cloud/jitaccess/internal/audit"
	"github.com/qen-cloud/jitaccess/internal/config"
	"github.com/qen-cloud/jitaccess/internal/policyanalyzer"
	"github.com/qen-cloud/jitaccess/internal/provisioner"
	"github.com/qen-cloud/jitaccess/internal/tokens"
)

const testProject = "//cloudresourcemanager.googleapis.com/projects/proj-1"

// fakePolicyAnalyzerClient reports alice eligible for self-approval on
// roles/viewer and peer-approval on roles/editor, with bob and carol as
// fellow roles/editor holders who can serve as reviewers.
type fakePolicyAnalyzerClient struct{}

func (fakePolicyAnalyzerClient) FindAccessibleResourcesByUser(ctx context.Context, scope, user, permissionFilter, resourceFilter string, expand bool) ([]policyanalyzer.AnalysisResult, []string, error) {
	results := []policyanalyzer.AnalysisResult{
		{
			Binding: policyanalyzer.Binding{
				Members: []string{user},
				Role:    "roles/viewer",
				Condition: &policyanalyzer.Condition{
					Expression: "has({}.jitAccessConstraint)",
				},
			},
			ACLs: []policyanalyzer.AccessControlList{
				{Evaluation: policyanalyzer.EvalConditional, Resources: []string{testProject}},
			},
		},
		{
			Binding: policyanalyzer.Binding{
				Members: []string{user},
				Role:    "roles/editor",
				Condition: &policyanalyzer.Condition{
					Expression: "has({}.multiPartyApprovalConstraint)",
				},
			},
			ACLs: []policyanalyzer.AccessControlList{
				{Evaluation: policyanalyzer.EvalConditional, Resources: []string{testProject}},
			},
		},
	}
	return results, nil, nil
}

func (fakePolicyAnalyzerClient) FindPermissionedPrincipalsByResource(ctx context.Context, scope, resourceFullName, role string) ([]string, []string, error) {
	return []string{"user:alice@example.com", "user:bob@example.com", "user:carol@example.com"}, nil, nil
}

// fakeIAMClient is an in-memory single-project IAM policy store.
type fakeIAMClient struct {
	policy provisioner.Policy
}

func (f *fakeIAMClient) GetIamPolicy(ctx context.Context, projectID accessmodel.ProjectId) (provisioner.Policy, error) {
	return f.policy, nil
}

func (f *fakeIAMClient) SetIamPolicy(ctx context.Context, projectID accessmodel.ProjectId, policy provisioner.Policy, auditReason string) error {
	f.policy = policy
	return nil
}

func alice() accessmodel.UserId { return accessmodel.UserId{ID: "u-alice", Email: "alice@example.com"} }
func bob() accessmodel.UserId   { return accessmodel.UserId{ID: "u-bob", Email: "bob@example.com"} }
func carol() accessmodel.UserId { return accessmodel.UserId{ID: "u-carol", Email: "carol@example.com"} }

func testEngine(t *testing.T, clock accessmodel.Clock) (*Engine, *fakeIAMClient) {
	t.Helper()

	creds, err := tokens.NewLocalRSAKeySource("test-key")
	if err != nil {
		t.Fatalf("NewLocalRSAKeySource: %v", err)
	}
	iam := &fakeIAMClient{}

	cfg := config.Default()
	cfg.Scope = "organizations/123"
	cfg.ServiceAccount = "jit-broker@example.iam.gserviceaccount.com"
	cfg.MaxReviewers = 3

	eng, err := New(cfg, Dependencies{
		PolicyAnalyzerClient: fakePolicyAnalyzerClient{},
		IAMClient:            iam,
		Credentials:          creds,
		Clock:                clock,
	}, logr.Discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return eng, iam
}

func TestEngineSelfApprovalActivationGrantsBinding(t *testing.T) {
	clock := accessmodel.FixedClock{T: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	eng, iam := testEngine(t, clock)
	ctx := context.Background()

	req, err := eng.CreateJitRequest(ctx, alice(),
		[]accessmodel.RoleBinding{{Resource: testProject, Role: "roles/viewer"}},
		"debugging an incident", clock.Now(), 15*time.Minute)
	if err != nil {
		t.Fatalf("CreateJitRequest: %v", err)
	}

	if _, err := eng.Activate(ctx, req); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	if len(iam.policy.Bindings) != 1 {
		t.Fatalf("got %d bindings, want 1", len(iam.policy.Bindings))
	}
	if iam.policy.Bindings[0].Role != "roles/viewer" {
		t.Fatalf("got role %q", iam.policy.Bindings[0].Role)
	}

	events := eng.Recent(10)
	var sawCreated, sawApplied bool
	for _, e := range events {
		if e.Type == audit.EventRequestCreated {
			sawCreated = true
		}
		if e.Type == audit.EventActivationApplied {
			sawApplied = true
		}
	}
	if !sawCreated || !sawApplied {
		t.Fatalf("expected request_created and activation_applied audit events, got %+v", events)
	}
}

func TestEnginePeerApprovalFlowSignsVerifiesAndApproves(t *testing.T) {
	clock := accessmodel.FixedClock{T: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	eng, iam := testEngine(t, clock)
	ctx := context.Background()

	req, err := eng.CreateMpaRequest(ctx, alice(),
		accessmodel.RoleBinding{Resource: testProject, Role: "roles/editor"},
		[]accessmodel.UserId{bob(), carol()},
		"quarterly access review", clock.Now(), 30*time.Minute)
	if err != nil {
		t.Fatalf("CreateMpaRequest: %v", err)
	}

	token, _, _, err := eng.SignToken(ctx, req)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}

	claims, err := eng.VerifyToken(ctx, token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	roundTripped := claims.ToMpaRequest(req.RequestingUser.ID)
	roundTripped.RequestingUser = req.RequestingUser
	roundTripped.Reviewers = req.Reviewers

	if _, err := eng.Approve(ctx, bob(), roundTripped); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	if len(iam.policy.Bindings) != 1 {
		t.Fatalf("got %d bindings, want 1", len(iam.policy.Bindings))
	}
}

func TestEngineListProjectsAndReviewers(t *testing.T) {
	clock := accessmodel.FixedClock{T: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	eng, _ := testEngine(t, clock)
	ctx := context.Background()

	projects, err := eng.ListProjects(ctx, alice())
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(projects) != 1 || projects[0] != "proj-1" {
		t.Fatalf("got %+v", projects)
	}

	set, err := eng.ListEligibilities(ctx, alice(), "proj-1")
	if err != nil {
		t.Fatalf("ListEligibilities: %v", err)
	}
	if len(set.Items) != 2 {
		t.Fatalf("got %d eligibilities, want 2", len(set.Items))
	}

	reviewers, err := eng.ListReviewers(ctx, alice(), accessmodel.Eligibility{
		RoleBinding:    accessmodel.RoleBinding{Resource: testProject, Role: "roles/editor"},
		ActivationType: accessmodel.PeerApproval,
	})
	if err != nil {
		t.Fatalf("ListReviewers: %v", err)
	}
	if len(reviewers) != 2 {
		t.Fatalf("got %d reviewers, want 2 (bob, carol)", len(reviewers))
	}
}
