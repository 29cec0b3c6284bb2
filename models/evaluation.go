// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// EvaluationStatus is the lifecycle status of a home-care evaluation.
type EvaluationStatus string

const (
	EvaluationDraft     EvaluationStatus = "draft"
	EvaluationScheduled EvaluationStatus = "scheduled"
	EvaluationCompleted EvaluationStatus = "completed"
	EvaluationCancelled EvaluationStatus = "cancelled"
)

// EvaluationSensitiveFields lists the [Evaluation] JSON keys that are
// encrypted field-by-field before an evaluation is persisted.
var EvaluationSensitiveFields = []string{
	"patientName",
	"patientDocument",
	"patientPhone",
	"address",
	"clinicalNotes",
}

// Evaluation is a home-care patient evaluation.
type Evaluation struct {
	ID string `json:"id"`

	// Identifying and health data. Encrypted in place at rest.
	PatientName     string `json:"patientName"`
	PatientDocument string `json:"patientDocument"`
	PatientPhone    string `json:"patientPhone,omitempty"`
	Address         string `json:"address,omitempty"`
	ClinicalNotes   string `json:"clinicalNotes,omitempty"`

	// Plain fields, readable without decryption.
	CaregiverID string           `json:"caregiverId,omitempty"`
	Status      EvaluationStatus `json:"status"`
	Complexity  int              `json:"complexity,omitempty"`
	ScheduledAt *time.Time       `json:"scheduledAt,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// ToEntity converts the evaluation into the generic [Entity] handled by the
// data layer.
func (e Evaluation) ToEntity() (Entity, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal evaluation: %w", err)
	}

	var entity Entity
	if err = json.Unmarshal(raw, &entity); err != nil {
		return nil, fmt.Errorf("unmarshal evaluation entity: %w", err)
	}
	return entity, nil
}

// EvaluationFromEntity is the inverse of [Evaluation.ToEntity].
func EvaluationFromEntity(entity Entity) (Evaluation, error) {
	raw, err := json.Marshal(entity)
	if err != nil {
		return Evaluation{}, fmt.Errorf("marshal entity: %w", err)
	}

	var e Evaluation
	if err = json.Unmarshal(raw, &e); err != nil {
		return Evaluation{}, fmt.Errorf("unmarshal evaluation: %w", err)
	}
	return e, nil
}

// EvaluationSummary is the list view of an evaluation. Identifying fields are
// masked for display.
type EvaluationSummary struct {
	ID              string           `json:"id"`
	PatientInitials string           `json:"patientInitials"`
	PatientDocument string           `json:"patientDocument"`
	Status          EvaluationStatus `json:"status"`
	ScheduledAt     *time.Time       `json:"scheduledAt,omitempty"`
	SyncStatus      RecordSyncStatus `json:"syncStatus,omitempty"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}
