// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "tasks", "200"))

	RecordAPIRequest("GET", "tasks", "200", 15*time.Millisecond)

	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "tasks", "200"))
	if after != before+1 {
		t.Errorf("APIRequestsTotal = %v, want %v", after, before+1)
	}
}

func TestRecordRefresh(t *testing.T) {
	tests := []struct {
		name      string
		domain    string
		err       error
		wantError float64
	}{
		{name: "success", domain: "metrics-test-ok", err: nil, wantError: 0},
		{name: "failure", domain: "metrics-test-fail", err: errors.New("fetch failed"), wantError: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			RecordRefresh(tt.domain, 10*time.Millisecond, tt.err)

			if got := testutil.ToFloat64(RefreshErrors.WithLabelValues(tt.domain)); got != tt.wantError {
				t.Errorf("RefreshErrors = %v, want %v", got, tt.wantError)
			}
		})
	}
}

func TestRecordMutation(t *testing.T) {
	before := testutil.ToFloat64(MutationsTotal.WithLabelValues("task", "rolled_back"))

	RecordMutation("task", "rolled_back")
	RecordMutation("task", "rolled_back")

	if got := testutil.ToFloat64(MutationsTotal.WithLabelValues("task", "rolled_back")); got != before+2 {
		t.Errorf("MutationsTotal = %v, want %v", got, before+2)
	}
}
