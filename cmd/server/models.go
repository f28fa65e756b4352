package main

import (
	"encoding/json"
	"time"

	"github.com/liamcoop/trialmatch/catalog"
	"github.com/liamcoop/trialmatch/criteria"
	"github.com/liamcoop/trialmatch/match"
	"github.com/liamcoop/trialmatch/trial"
)

// ParseRequest is the body of POST /api/v1/criteria/parse
type ParseRequest struct {
	Criterion string `json:"criterion"`
}

// ParseResponse carries the parsed tree and its canonical text
type ParseResponse struct {
	Canonical string            `json:"canonical"`
	Function  criteria.Function `json:"function"`
}

// UpdateTrialRequest is the body of PUT /api/v1/trials/{trialId}.
// Active defaults to true.
type UpdateTrialRequest struct {
	Config trial.Config `json:"config"`
	Active *bool        `json:"active,omitempty"`
}

// TrialResponse describes a stored trial and whether it can be matched
type TrialResponse struct {
	Config    trial.Config `json:"config"`
	Active    bool         `json:"active"`
	Blocked   bool         `json:"blocked"`
	Errors    []string     `json:"errors,omitempty"`
	Cohorts   int          `json:"cohorts"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// TrialSummaryResponse is one row of GET /api/v1/trials
type TrialSummaryResponse struct {
	TrialID string `json:"trialId"`
	Acronym string `json:"acronym,omitempty"`
	Title   string `json:"title,omitempty"`
	Open    bool   `json:"open"`
	Blocked bool   `json:"blocked"`
}

type TrialsListResponse struct {
	Trials []TrialSummaryResponse `json:"trials"`
}

// MatchRequest is the body of POST /api/v1/match. An empty trial list
// matches every usable trial.
type MatchRequest struct {
	Patient json.RawMessage `json:"patient"`
	Trials  []string        `json:"trials,omitempty"`
}

type MatchResponse struct {
	RunID          string             `json:"runId"`
	PatientID      string             `json:"patientId"`
	Summary        match.Summary      `json:"summary"`
	Matches        []match.TrialMatch `json:"matches"`
	EvaluationTime string             `json:"evaluationTime"`
}

type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	TrialsLoaded  int    `json:"trialsLoaded"`
	TrialsBlocked int    `json:"trialsBlocked"`
	Error         string `json:"error,omitempty"`
}

func newTrialResponse(e *catalog.Entry) TrialResponse {
	resp := TrialResponse{
		Config:    e.Stored.Config,
		Active:    e.Stored.Active,
		Blocked:   e.Blocked(),
		Errors:    errorDetails(e.Err),
		CreatedAt: e.Stored.CreatedAt,
		UpdatedAt: e.Stored.UpdatedAt,
	}
	if e.Trial != nil {
		resp.Cohorts = len(e.Trial.Cohorts)
	}
	return resp
}

// errorDetails flattens joined errors into one line per failure
func errorDetails(err error) []string {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, errorDetails(e)...)
		}
		return out
	}
	return []string{err.Error()}
}
