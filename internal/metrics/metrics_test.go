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

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestObserveActivationIncrementsCounterAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveActivation("JIT", "success", 50*time.Millisecond)

	got := counterValue(t, m.ActivationsTotal.WithLabelValues("JIT", "success"))
	if got != 1 {
		t.Fatalf("got %v, want 1", got)
	}
}

func TestNilMetricsObserveIsANoop(t *testing.T) {
	var m *Metrics
	// None of these should panic even though m is nil.
	m.ObserveActivation("JIT", "success", time.Second)
	m.ObserveTokenIssued()
	m.ObserveTokenVerify("ok")
	m.ObserveProvisioningConflict()
	m.ObserveNotification("mail", "ok")
}

func TestObserveTokenVerifyTracksOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveTokenVerify("token_invalid")
	got := counterValue(t, m.TokenVerifyTotal.WithLabelValues("token_invalid"))
	if got != 1 {
		t.Fatalf("got %v, want 1", got)
	}
}
