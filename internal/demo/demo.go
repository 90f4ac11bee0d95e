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

// Package demo provides in-memory stand-ins for the engine's two outbound
// collaborators — the cloud policy-analysis client and the resource
// manager's IAM client — seeded with a small fixed fleet of projects,
// eligibilities, and role holders. It exists so jitaccessctl and local
// experimentation can drive a real Engine without a cloud project behind
// it; a production deployment wires accessengine.Dependencies against
// adapters that call the real APIs instead.
package demo

import (
	"context"
	"strconv"
	"sync"

	"github.com/qen-cloud/jitaccess/internal/accessmodel"
	"github.com/qen-cloud/jitaccess/internal/policyanalyzer"
	"github.com/qen-cloud/jitaccess/internal/provisioner"
)

// Grant seeds one eligible binding for member on a project.
type Grant struct {
	Member   string
	Resource accessmodel.ProjectId
	Role     string
	Marker   string // one of celcond.SelfApprovalMarker / PeerApprovalMarker
}

// PolicyAnalyzer is an in-memory policyanalyzer.Client backed by a fixed
// list of Grants, standing in for the cloud policy analyzer.
type PolicyAnalyzer struct {
	Grants []Grant
}

// NewPolicyAnalyzer seeds a PolicyAnalyzer with a small illustrative fleet:
// alice can self-approve roles/viewer and peer-approve roles/editor on
// demo-project-1, and bob/carol hold the same peer-approval eligibility so
// they can review alice's requests.
func NewPolicyAnalyzer() *PolicyAnalyzer {
	const project = accessmodel.ProjectId("demo-project-1")
	return &PolicyAnalyzer{Grants: []Grant{
		{Member: "user:alice@example.com", Resource: project, Role: "roles/viewer", Marker: "has({}.jitAccessConstraint)"},
		{Member: "user:alice@example.com", Resource: project, Role: "roles/editor", Marker: "has({}.multiPartyApprovalConstraint)"},
		{Member: "user:bob@example.com", Resource: project, Role: "roles/editor", Marker: "has({}.multiPartyApprovalConstraint)"},
		{Member: "user:carol@example.com", Resource: project, Role: "roles/editor", Marker: "has({}.multiPartyApprovalConstraint)"},
	}}
}

func (p *PolicyAnalyzer) FindAccessibleResourcesByUser(ctx context.Context, scope, user, permissionFilter, resourceFilter string, expand bool) ([]policyanalyzer.AnalysisResult, []string, error) {
	var out []policyanalyzer.AnalysisResult
	for _, g := range p.Grants {
		if g.Member != user {
			continue
		}
		resource := g.Resource.FullResourceName()
		if resourceFilter != "" && resourceFilter != resource {
			continue
		}
		out = append(out, policyanalyzer.AnalysisResult{
			Binding: policyanalyzer.Binding{
				Members:   []string{g.Member},
				Role:      g.Role,
				Condition: &policyanalyzer.Condition{Expression: g.Marker},
			},
			ACLs: []policyanalyzer.AccessControlList{
				{Evaluation: policyanalyzer.EvalConditional, Resources: []string{resource}},
			},
		})
	}
	return out, nil, nil
}

func (p *PolicyAnalyzer) FindPermissionedPrincipalsByResource(ctx context.Context, scope, resourceFullName, role string) ([]string, []string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, g := range p.Grants {
		if g.Resource.FullResourceName() != resourceFullName || g.Role != role {
			continue
		}
		if seen[g.Member] {
			continue
		}
		seen[g.Member] = true
		out = append(out, g.Member)
	}
	return out, nil, nil
}

// SearchProjectIds implements catalog.ProjectSearcher over the same seed
// data, for exercising the resource-manager search path of listProjects.
func (p *PolicyAnalyzer) SearchProjectIds(ctx context.Context, query string) ([]accessmodel.ProjectId, error) {
	seen := make(map[accessmodel.ProjectId]bool)
	var out []accessmodel.ProjectId
	for _, g := range p.Grants {
		if !seen[g.Resource] {
			seen[g.Resource] = true
			out = append(out, g.Resource)
		}
	}
	return out, nil
}

// IAMClient is an in-memory, per-project provisioner.IAMClient, standing in
// for the resource manager's real GetIamPolicy/SetIamPolicy RPCs.
type IAMClient struct {
	mu       sync.Mutex
	policies map[accessmodel.ProjectId]provisioner.Policy
	nextEtag int
}

// NewIAMClient constructs an empty in-memory IAM client.
func NewIAMClient() *IAMClient {
	return &IAMClient{policies: make(map[accessmodel.ProjectId]provisioner.Policy)}
}

func (c *IAMClient) GetIamPolicy(ctx context.Context, projectID accessmodel.ProjectId) (provisioner.Policy, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policies[projectID], nil
}

func (c *IAMClient) SetIamPolicy(ctx context.Context, projectID accessmodel.ProjectId, policy provisioner.Policy, auditReason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	current := c.policies[projectID]
	if policy.Etag != current.Etag {
		return accessmodel.New(accessmodel.Conflict, "etag mismatch on project %s", projectID)
	}
	c.nextEtag++
	policy.Etag = strconv.Itoa(c.nextEtag)
	c.policies[projectID] = policy
	return nil
}

// Policy returns the current policy held for projectID, for CLI rendering.
func (c *IAMClient) Policy(projectID accessmodel.ProjectId) provisioner.Policy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policies[projectID]
}
