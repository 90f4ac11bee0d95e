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

// Package policyanalyzer implements the Policy Analyzer (C1): it turns raw
// policy-analysis results from the external cloud policy analyzer into
// structured Eligibility sets, recognizing the two marker predicates and
// the activation time-window condition (spec §4.1).
package policyanalyzer

import "context"

// Evaluation is the condition-evaluation verdict the policy analyzer
// attaches to each access-control-list entry.
type Evaluation string

const (
	EvalTrue        Evaluation = "TRUE"
	EvalFalse       Evaluation = "FALSE"
	EvalConditional Evaluation = "CONDITIONAL"
)

// Condition is a CEL condition attached to a binding, as returned by the
// analyzer: a title (used to recognize the reserved activation window) and
// the CEL expression text (used to recognize the two eligibility markers).
type Condition struct {
	Title      string
	Expression string
}

// Binding is the (members, role, condition) triple the analyzer reports a
// policy binding as.
type Binding struct {
	Members   []string
	Role      string
	Condition *Condition
}

// AccessControlList is one ACL entry the analyzer associates with a
// binding: the verdict CEL evaluated to, and the resources it applies to.
type AccessControlList struct {
	Evaluation Evaluation
	Resources  []string
}

// AnalysisResult pairs a binding with the ACLs the analyzer computed for
// it.
type AnalysisResult struct {
	Binding Binding
	ACLs    []AccessControlList
}

// Client is the external policy-analysis client the engine depends on
// (spec §6, "Outbound: Policy-analysis client"). It is implemented by an
// adapter outside the core, wrapping the cloud policy analyzer's API.
type Client interface {
	// FindAccessibleResourcesByUser returns every analysis result relevant
	// to user within scope, optionally narrowed to resourceFilter (a full
	// resource name prefix) and permissionFilter (a specific IAM
	// permission). expand requests transitive expansion of groups.
	// Non-fatal analyzer errors are returned as warnings, not err.
	FindAccessibleResourcesByUser(ctx context.Context, scope string, user string, permissionFilter, resourceFilter string, expand bool) (results []AnalysisResult, warnings []string, err error)

	// FindPermissionedPrincipalsByResource returns every principal holding
	// role on resourceFullName within scope — used by reviewer discovery.
	FindPermissionedPrincipalsByResource(ctx context.Context, scope string, resourceFullName string, role string) (principals []string, warnings []string, err error)
}
