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

package accessmodel

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserId is an opaque account identifier plus the user's email. Equality is
// by identifier, not by email.
type UserId struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Equal reports whether two UserIds name the same account.
func (u UserId) Equal(other UserId) bool { return u.ID == other.ID }

// Member returns the "user:<email>" principal form used in IAM bindings.
func (u UserId) Member() string { return "user:" + u.Email }

// ProjectResourcePrefix is the full-resource-name prefix every bare project
// resource carries. Folders and organizations are traversed transitively by
// the policy analyzer but only leaf resources under this prefix (with no
// further path segments) are surfaced to callers.
const ProjectResourcePrefix = "//cloudresourcemanager.googleapis.com/projects/"

// ProjectId is an unqualified project name; it is in bijection with a full
// resource name of the form "//cloudresourcemanager.googleapis.com/projects/<id>".
type ProjectId string

// FullResourceName renders the project as a full resource name.
func (p ProjectId) FullResourceName() string {
	return ProjectResourcePrefix + string(p)
}

// ParseProjectFullResourceName recovers a ProjectId from a full resource
// name, rejecting anything that is not a bare project (folders,
// organizations, or a project with extra path segments).
func ParseProjectFullResourceName(name string) (ProjectId, bool) {
	if !strings.HasPrefix(name, ProjectResourcePrefix) {
		return "", false
	}
	rest := strings.TrimPrefix(name, ProjectResourcePrefix)
	if rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return ProjectId(rest), true
}

// RoleBinding is the (resource full name, role) pair an eligibility or
// activation is scoped to. The role is an opaque string such as
// "roles/viewer"; the engine never interprets it beyond equality.
type RoleBinding struct {
	Resource string `json:"resource"`
	Role     string `json:"role"`
}

// Less orders role bindings by resource then role, the ordering the
// eligibility set is sorted by (spec §4.1, merging rule 4).
func (b RoleBinding) Less(other RoleBinding) bool {
	if b.Resource != other.Resource {
		return b.Resource < other.Resource
	}
	return b.Role < other.Role
}

func (b RoleBinding) String() string { return b.Resource + "#" + b.Role }

// ActivationType is the modality of an eligibility or activation request.
type ActivationType string

const (
	SelfApproval ActivationType = "JIT"
	PeerApproval ActivationType = "MPA"
)

// ExternalApprovalOf models the later design's third ActivationType variant:
// implementers treat ExternalApproval as PeerApproval whose reviewer set
// does not intersect the requester's own eligibility set. No separate wire
// type exists; this helper exists purely to document the equivalence.
func ExternalApprovalOf() ActivationType { return PeerApproval }

// EligibilityStatus reports whether an eligibility is merely available or
// is presently active (a temporary grant in effect).
type EligibilityStatus string

const (
	Available EligibilityStatus = "AVAILABLE"
	Active    EligibilityStatus = "ACTIVE"
)

// Eligibility is a single entry in a user's eligibility set: a role
// binding, the modality by which it can be activated, and whether it is
// currently active. At most one Eligibility exists per (RoleBinding,
// ActivationType) pair.
type Eligibility struct {
	RoleBinding    RoleBinding       `json:"role_binding"`
	ActivationType ActivationType    `json:"activation_type"`
	Status         EligibilityStatus `json:"status"`
}

func (e Eligibility) key() string {
	return e.RoleBinding.String() + "#" + string(e.ActivationType)
}

// EligibilitySet is a sorted set of eligibilities plus any non-fatal
// warnings surfaced by the policy analyzer during discovery.
type EligibilitySet struct {
	Items    []Eligibility `json:"items"`
	Warnings []string      `json:"warnings,omitempty"`
}

// Sort orders Items by resource then role (spec §4.1 merging rule 4).
func (s *EligibilitySet) Sort() {
	sort.Slice(s.Items, func(i, j int) bool {
		a, b := s.Items[i], s.Items[j]
		if a.RoleBinding != b.RoleBinding {
			return a.RoleBinding.Less(b.RoleBinding)
		}
		return a.ActivationType < b.ActivationType
	})
}

// Filter returns the subset of the set matching the given activation types
// and statuses. A nil/empty filter slice matches everything.
func (s EligibilitySet) Filter(types []ActivationType, statuses []EligibilityStatus) EligibilitySet {
	out := EligibilitySet{Warnings: s.Warnings}
	for _, e := range s.Items {
		if len(types) > 0 && !containsType(types, e.ActivationType) {
			continue
		}
		if len(statuses) > 0 && !containsStatus(statuses, e.Status) {
			continue
		}
		out.Items = append(out.Items, e)
	}
	return out
}

func containsType(types []ActivationType, t ActivationType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

func containsStatus(statuses []EligibilityStatus, s EligibilityStatus) bool {
	for _, x := range statuses {
		if x == s {
			return true
		}
	}
	return false
}

// Find returns the eligibility matching (binding, type), if any.
func (s EligibilitySet) Find(binding RoleBinding, activationType ActivationType) (Eligibility, bool) {
	for _, e := range s.Items {
		if e.RoleBinding == binding && e.ActivationType == activationType {
			return e, true
		}
	}
	return Eligibility{}, false
}

// ActivationId is a unique printable identifier carrying the activation
// type as a prefix, so token consumers can reject cross-type confusion
// (spec §3).
type ActivationId string

// NewActivationId mints a fresh id for the given activation type.
func NewActivationId(t ActivationType) ActivationId {
	return ActivationId(fmt.Sprintf("%s-%s", strings.ToLower(string(t)), uuid.New().String()))
}

// TypeOf extracts the ActivationType prefix encoded by NewActivationId, for
// cross-type confusion checks.
func (id ActivationId) TypeOf() (ActivationType, bool) {
	s := string(id)
	switch {
	case strings.HasPrefix(s, "jit-"):
		return SelfApproval, true
	case strings.HasPrefix(s, "mpa-"):
		return PeerApproval, true
	default:
		return "", false
	}
}

// RequestCommon carries the fields shared by every concrete
// ActivationRequest variant (spec §3).
type RequestCommon struct {
	ID             ActivationId  `json:"id"`
	RequestingUser UserId        `json:"requesting_user"`
	Entitlements   []RoleBinding `json:"entitlements"`
	Justification  string        `json:"justification"`
	StartTime      time.Time     `json:"start_time"`
	Duration       time.Duration `json:"duration"`
}

// EndTime returns StartTime + Duration.
func (r RequestCommon) EndTime() time.Time { return r.StartTime.Add(r.Duration) }

// ActivationRequest is the tagged union of JitRequest and MpaRequest,
// modeled as an interface rather than a class hierarchy (spec §9: "Replacing
// inheritance on requests").
type ActivationRequest interface {
	Common() RequestCommon
	Kind() ActivationType
}

// JitRequest is a self-approval activation request: no reviewers, one or
// more entitlements.
type JitRequest struct {
	RequestCommon
}

func (r *JitRequest) Common() RequestCommon { return r.RequestCommon }
func (r *JitRequest) Kind() ActivationType  { return SelfApproval }

// MpaRequest is a peer-approval activation request: exactly one
// entitlement, plus a non-empty reviewer set disjoint from the requester.
type MpaRequest struct {
	RequestCommon
	Reviewers []UserId `json:"reviewers"`
}

func (r *MpaRequest) Common() RequestCommon { return r.RequestCommon }
func (r *MpaRequest) Kind() ActivationType  { return PeerApproval }

// HasReviewer reports whether u is one of the request's reviewers, compared
// with UserId.Equal (by ID).
func (r *MpaRequest) HasReviewer(u UserId) bool {
	for _, rv := range r.Reviewers {
		if rv.Equal(u) {
			return true
		}
	}
	return false
}

// Activation is the observable outcome once provisioning succeeded.
type Activation struct {
	Request ActivationRequest `json:"request"`
	EndTime time.Time         `json:"end_time"`
}

// Clock is the engine's injectable notion of "now", required so tests can
// control time deterministically (spec §6, "Clock — now()").
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock is a test Clock that always returns the same instant.
type FixedClock struct{ T time.Time }

func (f FixedClock) Now() time.Time { return f.T }
