// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package validation

import (
	"strings"
	"testing"

	"github.com/launchdeck/viewtrack/internal/models"
)

type sampleRequest struct {
	ProductID string `validate:"required,max=64"`
	Days      int    `validate:"gte=1,lte=365"`
	Source    string `validate:"omitempty,oneof=direct search social recommendation_feed recommendation_similar other"`
}

func TestValidateStructPasses(t *testing.T) {
	req := sampleRequest{ProductID: "prod-1", Days: 30, Source: "direct"}
	if err := ValidateStruct(&req); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}

func TestValidateStructMissingRequired(t *testing.T) {
	req := sampleRequest{Days: 30}
	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("expected validation error for missing ProductID")
	}

	apiErr := verr.ToAPIError()
	if apiErr.Code != models.CodeValidation {
		t.Errorf("expected code %s, got %s", models.CodeValidation, apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "ProductID") {
		t.Errorf("expected ProductID in message, got %q", apiErr.Message)
	}
}

func TestValidateStructRangeAndOneof(t *testing.T) {
	req := sampleRequest{ProductID: "p", Days: 500, Source: "carrier_pigeon"}
	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("expected validation errors")
	}
	if len(verr.Errors()) != 2 {
		t.Errorf("expected 2 field errors, got %d: %v", len(verr.Errors()), verr)
	}

	apiErr := verr.ToAPIError()
	if _, ok := apiErr.Details["Days"]; !ok {
		t.Error("expected Days in error details")
	}
	if _, ok := apiErr.Details["Source"]; !ok {
		t.Error("expected Source in error details")
	}
}
