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
	"testing"
	"time"
)

func TestParseProjectFullResourceName(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want ProjectId
		ok   bool
	}{
		{"bare project", "//cloudresourcemanager.googleapis.com/projects/shop-prod", "shop-prod", true},
		{"folder not accepted", "//cloudresourcemanager.googleapis.com/folders/123", "", false},
		{"extra path segment rejected", "//cloudresourcemanager.googleapis.com/projects/shop-prod/foo", "", false},
		{"empty id rejected", "//cloudresourcemanager.googleapis.com/projects/", "", false},
		{"unrelated resource", "//compute.googleapis.com/projects/shop-prod/zones/us", "", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := ParseProjectFullResourceName(c.in)
			if ok != c.ok || got != c.want {
				t.Errorf("ParseProjectFullResourceName(%q) = (%q, %v), want (%q, %v)", c.in, got, ok, c.want, c.ok)
			}
		})
	}
}

func TestProjectIdFullResourceNameRoundTrip(t *testing.T) {
	id := ProjectId("shop-prod")
	full := id.FullResourceName()
	got, ok := ParseProjectFullResourceName(full)
	if !ok || got != id {
		t.Fatalf("round trip failed: got (%q, %v)", got, ok)
	}
}

func TestEligibilitySetFilter(t *testing.T) {
	set := EligibilitySet{Items: []Eligibility{
		{RoleBinding: RoleBinding{Resource: "p1", Role: "roles/viewer"}, ActivationType: SelfApproval, Status: Available},
		{RoleBinding: RoleBinding{Resource: "p1", Role: "roles/editor"}, ActivationType: PeerApproval, Status: Active},
	}}

	onlyJit := set.Filter([]ActivationType{SelfApproval}, nil)
	if len(onlyJit.Items) != 1 || onlyJit.Items[0].ActivationType != SelfApproval {
		t.Fatalf("expected 1 JIT eligibility, got %+v", onlyJit.Items)
	}

	onlyActive := set.Filter(nil, []EligibilityStatus{Active})
	if len(onlyActive.Items) != 1 || onlyActive.Items[0].Status != Active {
		t.Fatalf("expected 1 active eligibility, got %+v", onlyActive.Items)
	}
}

func TestEligibilitySetSortOrdersByResourceThenRole(t *testing.T) {
	set := EligibilitySet{Items: []Eligibility{
		{RoleBinding: RoleBinding{Resource: "p2", Role: "roles/viewer"}, ActivationType: SelfApproval},
		{RoleBinding: RoleBinding{Resource: "p1", Role: "roles/editor"}, ActivationType: SelfApproval},
		{RoleBinding: RoleBinding{Resource: "p1", Role: "roles/admin"}, ActivationType: SelfApproval},
	}}
	set.Sort()
	want := []string{"p1#roles/admin", "p1#roles/editor", "p2#roles/viewer"}
	for i, w := range want {
		if set.Items[i].RoleBinding.String() != w {
			t.Fatalf("position %d: got %s, want %s", i, set.Items[i].RoleBinding.String(), w)
		}
	}
}

func TestNewActivationIdCarriesTypePrefix(t *testing.T) {
	jitID := NewActivationId(SelfApproval)
	if typ, ok := jitID.TypeOf(); !ok || typ != SelfApproval {
		t.Fatalf("jit id %q did not resolve to SelfApproval: typ=%v ok=%v", jitID, typ, ok)
	}

	mpaID := NewActivationId(PeerApproval)
	if typ, ok := mpaID.TypeOf(); !ok || typ != PeerApproval {
		t.Fatalf("mpa id %q did not resolve to PeerApproval: typ=%v ok=%v", mpaID, typ, ok)
	}

	if jitID == mpaID {
		t.Fatal("expected distinct ids")
	}
}

func TestMpaRequestHasReviewer(t *testing.T) {
	alice := UserId{ID: "u1", Email: "alice@example.com"}
	bob := UserId{ID: "u2", Email: "bob@example.com"}
	req := &MpaRequest{
		RequestCommon: RequestCommon{RequestingUser: alice},
		Reviewers:     []UserId{bob},
	}
	if req.HasReviewer(alice) {
		t.Fatal("requester must not be a reviewer")
	}
	if !req.HasReviewer(bob) {
		t.Fatal("expected bob to be a reviewer")
	}
}

func TestRequestCommonEndTime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rc := RequestCommon{StartTime: start, Duration: 10 * time.Minute}
	want := start.Add(10 * time.Minute)
	if rc.EndTime() != want {
		t.Fatalf("EndTime() = %v, want %v", rc.EndTime(), want)
	}
}
