// Package models defines the records, extracted fields, and verification reports
// exchanged between the verification engine and its callers.
package models

import "time"

// Proposer is the stored record of an insurance applicant; it is the source of truth
// for identity and financial verification. Nullable columns are pointers.
type Proposer struct {
	ProposerID   int64    `json:"proposer_id" db:"proposer_id" yaml:"proposer_id"`
	CustomerName string   `json:"customer_name" db:"customer_name" yaml:"customer_name"`
	DOB          *string  `json:"dob,omitempty" db:"dob" yaml:"dob,omitempty"`
	PANNumber    *string  `json:"pan_number,omitempty" db:"pan_number" yaml:"pan_number,omitempty"`
	AnnualIncome *float64 `json:"annual_income,omitempty" db:"annual_income" yaml:"annual_income,omitempty"`
	Age          *int     `json:"age,omitempty" db:"age" yaml:"age,omitempty"`
	Sex          *string  `json:"sex,omitempty" db:"sex" yaml:"sex,omitempty"`
}

// DocumentRecord is the stored metadata of an uploaded document.
type DocumentRecord struct {
	ID             int64     `json:"id" db:"id" yaml:"id"`
	ProposerID     int64     `json:"proposer_id" db:"proposer_id" yaml:"proposer_id"`
	ProposalNumber string    `json:"proposal_number" db:"proposal_number" yaml:"proposal_number"`
	DocumentType   string    `json:"document_type" db:"document_type" yaml:"document_type"`
	SourceURL      string    `json:"source_url" db:"source_url" yaml:"source_url"`
	CreatedAt      time.Time `json:"created_at" db:"created_at" yaml:"-"`
}
