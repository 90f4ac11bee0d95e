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
	"github.com/qen-cloud/jitaccess/internal/accessmodel"
	"github.com/qen-cloud/jitaccess/internal/celcond"
)

// mergeEligibilities implements spec §4.1's merging rules:
//  1. Collect candidate eligible bindings: condition matches one of the two
//     marker predicates, with evaluation CONDITIONAL.
//  2. Collect active bindings: condition title is the reserved activation
//     title, with evaluation TRUE. Evaluation FALSE (expired) is discarded.
//  3. An active binding's activation type is taken from the marker-tagged
//     eligibility the role binding was originally granted under, if still
//     present in this same analysis; if that eligibility has since been
//     revoked, self-approval is assumed, since most entitlements in the
//     fleet are self-approved.
//  4. Deduplicate by (roleBinding, type), preferring Active over Available.
func mergeEligibilities(results []AnalysisResult, member string, project accessmodel.ProjectId) accessmodel.EligibilitySet {
	type eligKey struct {
		binding accessmodel.RoleBinding
		typ     accessmodel.ActivationType
	}
	candidateType := make(map[accessmodel.RoleBinding]accessmodel.ActivationType)
	candidates := make(map[eligKey]bool)
	actives := make(map[accessmodel.RoleBinding]bool)

	for _, result := range results {
		if !hasMember(result.Binding.Members, member) {
			continue
		}
		if result.Binding.Condition == nil {
			continue
		}

		marker := celcond.ClassifyMarker(result.Binding.Condition.Expression)
		isActivation := celcond.IsActivationTitle(result.Binding.Condition.Title)

		switch {
		case marker != celcond.NoMarker:
			activationType := markerToActivationType(marker)
			for _, acl := range result.ACLs {
				if acl.Evaluation != EvalConditional || !aclAppliesToProject(acl, project) {
					continue
				}
				binding := accessmodel.RoleBinding{Resource: project.FullResourceName(), Role: result.Binding.Role}
				candidates[eligKey{binding, activationType}] = true
				candidateType[binding] = activationType
			}

		case isActivation:
			for _, acl := range result.ACLs {
				if acl.Evaluation != EvalTrue || !aclAppliesToProject(acl, project) {
					continue
				}
				binding := accessmodel.RoleBinding{Resource: project.FullResourceName(), Role: result.Binding.Role}
				actives[binding] = true
			}
		}
	}

	set := accessmodel.EligibilitySet{}
	seen := make(map[eligKey]bool)

	for binding := range actives {
		activationType, ok := candidateType[binding]
		if !ok {
			activationType = accessmodel.SelfApproval
		}
		set.Items = append(set.Items, accessmodel.Eligibility{
			RoleBinding:    binding,
			ActivationType: activationType,
			Status:         accessmodel.Active,
		})
		seen[eligKey{binding, activationType}] = true
	}

	for key := range candidates {
		if seen[key] {
			continue
		}
		set.Items = append(set.Items, accessmodel.Eligibility{
			RoleBinding:    key.binding,
			ActivationType: key.typ,
			Status:         accessmodel.Available,
		})
	}

	set.Sort()
	return set
}

func markerToActivationType(m celcond.Marker) accessmodel.ActivationType {
	if m == celcond.PeerApprovalMarker {
		return accessmodel.PeerApproval
	}
	return accessmodel.SelfApproval
}

func hasMember(members []string, member string) bool {
	for _, m := range members {
		if m == member {
			return true
		}
	}
	return false
}

// aclAppliesToProject applies the resource filter from spec §4.1: only the
// bare project resource itself, not subordinate resources, is considered.
func aclAppliesToProject(acl AccessControlList, project accessmodel.ProjectId) bool {
	want := project.FullResourceName()
	for _, r := range acl.Resources {
		if r == want {
			return true
		}
	}
	return false
}
