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

package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"

	"github.com/qen-cloud/jitaccess/internal/accessmodel"
)

type recordingTransport struct {
	mu         sync.Mutex
	name       string
	functional bool
	failOnSend bool
	sent       []Notification
}

func (r *recordingTransport) Name() string     { return r.name }
func (r *recordingTransport) Functional() bool { return r.functional }

func (r *recordingTransport) Send(ctx context.Context, n Notification, renderedBody string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOnSend {
		return errTransportFailed
	}
	r.sent = append(r.sent, n)
	return nil
}

var errTransportFailed = &transportError{}

type transportError struct{}

func (*transportError) Error() string { return "transport failed" }

func TestRenderEscapesPropertyValues(t *testing.T) {
	r := NewRendererFromString("<p>Hello {{NAME}}, re: {{SUBJECT}}</p>")
	out, err := r.Render(Notification{Properties: map[string]string{
		"NAME":    "<script>alert(1)</script>",
		"SUBJECT": "a & b",
	}})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := "<p>Hello &lt;script&gt;alert(1)&lt;/script&gt;, re: a &amp; b</p>"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestRenderLeavesUnknownPlaceholdersUntouched(t *testing.T) {
	r := NewRendererFromString("{{KNOWN}} / {{UNKNOWN}}")
	out, err := r.Render(Notification{Properties: map[string]string{"KNOWN": "x"}})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "x / {{UNKNOWN}}" {
		t.Fatalf("got %q", out)
	}
}

func TestDispatchSkipsNonFunctionalAndIsolatesFailures(t *testing.T) {
	working := &recordingTransport{name: "working", functional: true}
	broken := &recordingTransport{name: "broken", functional: true, failOnSend: true}
	disabled := &recordingTransport{name: "disabled", functional: false}

	d := NewDispatcher(NewRendererFromString("body"), []Transport{working, broken, disabled}, logr.Discard())
	d.Dispatch(context.Background(), Notification{Type: RequestActivation, Subject: "test"})

	if len(working.sent) != 1 {
		t.Fatalf("expected the working transport to receive the notification, got %d", len(working.sent))
	}
	if len(disabled.sent) != 0 {
		t.Fatalf("expected the disabled transport to never be called, got %d", len(disabled.sent))
	}
}

func TestMailTransportFunctionalReflectsEnableFlag(t *testing.T) {
	enabled := NewMailTransport("smtp.example.com", 587, "jit@example.com", "", "", true)
	disabled := NewMailTransport("smtp.example.com", 587, "jit@example.com", "", "", false)
	if !enabled.Functional() {
		t.Fatal("expected enabled mail transport to be functional")
	}
	if disabled.Functional() {
		t.Fatal("expected disabled mail transport to not be functional")
	}
}

func TestLoggingTransportAlwaysFunctional(t *testing.T) {
	lt := NewLoggingTransport(logr.Discard())
	if !lt.Functional() {
		t.Fatal("expected logging transport to always be functional")
	}
	if err := lt.Send(context.Background(), Notification{Type: RequestActivation, Subject: "s"}, "body"); err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestBuildersPopulateExpectedRecipients(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	req := &accessmodel.MpaRequest{
		RequestCommon: accessmodel.RequestCommon{
			RequestingUser: accessmodel.UserId{Email: "alice@example.com"},
			Entitlements:   []accessmodel.RoleBinding{{Resource: accessmodel.ProjectId("proj-1").FullResourceName(), Role: "roles/viewer"}},
			Justification:  "bug#7",
			StartTime:      start,
			Duration:       15 * time.Minute,
		},
		Reviewers: []accessmodel.UserId{{Email: "bob@example.com"}, {Email: "carol@example.com"}},
	}

	reqNotif := RequestActivationNotification(req)
	if len(reqNotif.Recipients) != 2 || reqNotif.CcRecipients[0] != "alice@example.com" {
		t.Fatalf("unexpected RequestActivation notification: %+v", reqNotif)
	}

	approved := ActivationApprovedNotification(req, accessmodel.UserId{Email: "bob@example.com"})
	if approved.Recipients[0] != "alice@example.com" || !approved.IsReply {
		t.Fatalf("unexpected ActivationApproved notification: %+v", approved)
	}
	if len(approved.CcRecipients) != 2 {
		t.Fatalf("expected both reviewers cc'd, got %+v", approved.CcRecipients)
	}

	jitReq := &accessmodel.JitRequest{RequestCommon: req.RequestCommon}
	selfApproved := ActivationSelfApprovedNotification(jitReq)
	if selfApproved.Recipients[0] != "alice@example.com" || !selfApproved.IsReply {
		t.Fatalf("unexpected ActivationSelfApproved notification: %+v", selfApproved)
	}
}
