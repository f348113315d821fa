package billing

import (
	"time"

	"github.com/google/uuid"
)

// Default billing parameters applied when a client record carries no
// explicit rate. Historical client rows frequently leave both unset.
const (
	DefaultHourlyRate = 90000.0
	DefaultTaxRate    = 0.13
)

// ClientKind distinguishes how time entries are linked to a client.
type ClientKind string

const (
	// ClientIndividual links time entries directly to the client.
	ClientIndividual ClientKind = "INDIVIDUAL"
	// ClientCorporate links time entries through the client's case records.
	ClientCorporate ClientKind = "CORPORATE"
)

// Client is a billable party, either a person or a company.
type Client struct {
	ID               uuid.UUID
	Name             string
	TaxID            string
	Kind             ClientKind
	HourlyRate       *float64
	TaxRate          *float64
	BillingActive    bool
	ApprovalRequired bool
}

// EffectiveHourlyRate returns the client rate or the firm default.
func (c Client) EffectiveHourlyRate() float64 {
	if c.HourlyRate != nil && *c.HourlyRate > 0 {
		return *c.HourlyRate
	}
	return DefaultHourlyRate
}

// EffectiveTaxRate returns the client tax percentage or the firm default.
func (c Client) EffectiveTaxRate() float64 {
	if c.TaxRate != nil && *c.TaxRate >= 0 {
		return *c.TaxRate
	}
	return DefaultTaxRate
}

// CompanyGroup ties a principal company to its affiliated members.
// A company holds at most one role across all groups; the registry
// enforces that at registration time.
type CompanyGroup struct {
	ID          uuid.UUID
	Name        string
	PrincipalID uuid.UUID
	MemberIDs   []uuid.UUID
}

// CaseRecord is a matter opened for a client. Corporate time entries
// hang off cases rather than off the client row.
type CaseRecord struct {
	ID         uuid.UUID
	ClientID   uuid.UUID
	Name       string
	FileNumber string
}

// TimeEntry is a unit of billable work. Duration is free text as
// captured by the intake tools ("1:30", "2:30:15" or "2.5").
type TimeEntry struct {
	ID       uuid.UUID
	ClientID uuid.UUID
	CaseID   *uuid.UUID
	Date     time.Time
	Duration string
	Title    string
}

// ExpenseStatus enumerates expense payment states.
type ExpenseStatus string

const (
	ExpensePaid           ExpenseStatus = "PAID"
	ExpensePendingCurrent ExpenseStatus = "PENDING_CURRENT"
	ExpensePendingPrior   ExpenseStatus = "PENDING_PRIOR"
	ExpenseCancelled      ExpenseStatus = "CANCELLED"
)

// Expense is a pass-through cost. Amount is the final charge and is
// never taxed again downstream.
type Expense struct {
	ID          uuid.UUID
	ClientID    uuid.UUID
	Date        time.Time
	Description string
	Amount      float64
	Status      ExpenseStatus
	Tag         ServiceTag
}

// ChargeStatus enumerates professional service charge states.
type ChargeStatus string

const (
	ChargePending   ChargeStatus = "PENDING"
	ChargePaid      ChargeStatus = "PAID"
	ChargeCancelled ChargeStatus = "CANCELLED"
)

// ServiceCharge is a fixed-fee professional service. Total is the
// final billable amount; Cost/Expenses/Tax only record its breakdown.
type ServiceCharge struct {
	ID          uuid.UUID
	ClientID    uuid.UUID
	CaseID      *uuid.UUID
	Date        time.Time
	Description string
	Cost        float64
	Expenses    float64
	Tax         float64
	Total       float64
	Status      ChargeStatus
	Tag         ServiceTag
}

// ServiceTag marks how a line item is billed; only a handful of values
// appear in the data and only these three matter to classification.
type ServiceTag string

const (
	// TagMonthly marks recurring installment billing ("mensualidad").
	TagMonthly ServiceTag = "MONTHLY"
	// TagStageCompleted marks charges billed on completion of a stage.
	TagStageCompleted ServiceTag = "STAGE_COMPLETED"
	// TagOneTime marks a single non-recurring charge.
	TagOneTime ServiceTag = "ONE_TIME"
)

// InstallmentStatus enumerates installment request states.
type InstallmentStatus string

const (
	InstallmentActive    InstallmentStatus = "ACTIVE"
	InstallmentPaid      InstallmentStatus = "PAID"
	InstallmentCancelled InstallmentStatus = "CANCELLED"
)

// Installment is a perpetual monthly charge defined once and billed
// every period until cancelled. Installments are not date-filtered.
type Installment struct {
	ID                uuid.UUID
	ClientID          uuid.UUID
	Title             string
	Tag               ServiceTag
	NetCost           float64
	AmountIncludesTax bool
	TaxAmount         float64
	Count             int
	PerInstallment    float64
	TotalPayable      float64
	Status            InstallmentStatus
	AmountPaid        float64
	Balance           float64
}

// BilledAmount is the figure charged for one billing period. Older
// rows predate the per-installment column and only carry the net cost.
func (i Installment) BilledAmount() float64 {
	if i.PerInstallment > 0 {
		return i.PerInstallment
	}
	return i.NetCost
}

// Modality is a presentation label describing how a client is billed.
// It has no effect on the monetary calculation.
type Modality string

const (
	ModalityMonthly        Modality = "MONTHLY"
	ModalityStageCompleted Modality = "STAGE_COMPLETED"
	ModalityOneTime        Modality = "ONE_TIME"
	ModalityHourly         Modality = "HOURLY"
	ModalityExpensesOnly   Modality = "EXPENSES_ONLY"
	ModalityNone           Modality = "NONE"
)

// ApprovalStatus enumerates the per-period hour approval states.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// ApprovalState records whether a client has signed off the computed
// hours for one period. It is mutated by the client-facing workflow
// and only read during aggregation.
type ApprovalState struct {
	ClientID    uuid.UUID
	PeriodLabel string
	Status      ApprovalStatus
	Reason      string
	Evidence    string
	UpdatedAt   time.Time
}

// Collected bundles the four billable categories fetched for one
// client and one period.
type Collected struct {
	TimeEntries    []TimeEntry
	Expenses       []Expense
	ServiceCharges []ServiceCharge
	Installments   []Installment
}

// Statement is the per-client monthly statement. All monetary fields
// are rounded to two decimals exactly once, when the statement is
// assembled; sums across statements add the rounded figures so that
// displayed totals always reconcile.
type Statement struct {
	ClientID         uuid.UUID
	ClientName       string
	Period           Period
	Minutes          int
	Hours            float64
	HourlyRate       float64
	HourCost         float64
	ExpenseTotal     float64
	ServiceTotal     float64
	InstallmentNet   float64
	InstallmentTax   float64
	Subtotal         float64
	TaxOnHours       float64
	TotalTax         float64
	GrandTotal       float64
	Modality         Modality
	ApprovalRequired bool
	ApprovalStatus   ApprovalStatus
}

// HasActivity reports whether any line item contributed to the
// statement. Zero-activity clients are excluded from dues views.
func (s Statement) HasActivity() bool {
	return s.GrandTotal != 0 || s.Minutes != 0 ||
		s.ExpenseTotal != 0 || s.ServiceTotal != 0 || s.InstallmentNet != 0
}

// MemberStatement is one member's contribution to a group statement.
// Err carries the member-scoped failure when its data could not be
// read; siblings are unaffected.
type MemberStatement struct {
	ClientID   uuid.UUID
	ClientName string
	Statement  *Statement
	Err        string
}

// GroupStatement consolidates a principal and its members for one
// period. Totals are straight sums of the rounded per-company figures.
type GroupStatement struct {
	GroupID    uuid.UUID
	GroupName  string
	Period     Period
	Principal  Statement
	Members    []MemberStatement
	Subtotal   float64
	TotalTax   float64
	GrandTotal float64
}

// RosterEntry is one client's slot in a roster-wide report.
type RosterEntry struct {
	ClientID   uuid.UUID
	ClientName string
	Statement  *Statement
	Err        string
}

// RosterReport covers every billing-active client for one period.
// A failed client is reported in place; the rest of the roster is
// still computed.
type RosterReport struct {
	Period     Period
	Entries    []RosterEntry
	Subtotal   float64
	TotalTax   float64
	GrandTotal float64
}
