package billing

import (
	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var colonPrinter = message.NewPrinter(language.MustParse("es-CR"))

// FormatColones renders a monetary value in Costa Rican colones with
// locale-aware digit grouping, e.g. ₡212 500,00.
func FormatColones(v float64) string {
	return colonPrinter.Sprintf("₡%v", number.Decimal(v,
		number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

// StatementView is the wire shape of a statement. Amounts are carried
// both as numbers and as display strings so spreadsheet-minded
// consumers never re-round.
type StatementView struct {
	ClientID          string  `json:"client_id"`
	ClientName        string  `json:"client_name"`
	Period            string  `json:"period"`
	HoursDisplay      string  `json:"hours_display"`
	Hours             float64 `json:"hours"`
	HourlyRate        float64 `json:"hourly_rate"`
	HourCost          float64 `json:"hour_cost"`
	ExpenseTotal      float64 `json:"expense_total"`
	ServiceTotal      float64 `json:"service_total"`
	InstallmentNet    float64 `json:"installment_net"`
	InstallmentTax    float64 `json:"installment_tax"`
	Subtotal          float64 `json:"subtotal"`
	TaxOnHours        float64 `json:"tax_on_hours"`
	TotalTax          float64 `json:"total_tax"`
	GrandTotal        float64 `json:"grand_total"`
	GrandTotalDisplay string  `json:"grand_total_display"`
	Modality          string  `json:"modality"`
	ApprovalRequired  bool    `json:"approval_required"`
	ApprovalStatus    string  `json:"approval_status,omitempty"`
}

// NewStatementView maps a statement to its wire shape.
func NewStatementView(s Statement) StatementView {
	return StatementView{
		ClientID:          s.ClientID.String(),
		ClientName:        s.ClientName,
		Period:            s.Period.Label,
		HoursDisplay:      FormatMinutes(s.Minutes),
		Hours:             s.Hours,
		HourlyRate:        s.HourlyRate,
		HourCost:          s.HourCost,
		ExpenseTotal:      s.ExpenseTotal,
		ServiceTotal:      s.ServiceTotal,
		InstallmentNet:    s.InstallmentNet,
		InstallmentTax:    s.InstallmentTax,
		Subtotal:          s.Subtotal,
		TaxOnHours:        s.TaxOnHours,
		TotalTax:          s.TotalTax,
		GrandTotal:        s.GrandTotal,
		GrandTotalDisplay: FormatColones(s.GrandTotal),
		Modality:          string(s.Modality),
		ApprovalRequired:  s.ApprovalRequired,
		ApprovalStatus:    string(s.ApprovalStatus),
	}
}

// GroupStatementView is the wire shape of a consolidated statement.
type GroupStatementView struct {
	GroupID           string        `json:"group_id,omitempty"`
	GroupName         string        `json:"group_name,omitempty"`
	Period            string        `json:"period"`
	Principal         StatementView `json:"principal"`
	Members           []MemberView  `json:"members,omitempty"`
	Subtotal          float64       `json:"subtotal"`
	TotalTax          float64       `json:"total_tax"`
	GrandTotal        float64       `json:"grand_total"`
	GrandTotalDisplay string        `json:"grand_total_display"`
}

// MemberView is one member slot, either a statement or an error.
type MemberView struct {
	ClientID   string         `json:"client_id"`
	ClientName string         `json:"client_name"`
	Statement  *StatementView `json:"statement,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// NewGroupStatementView maps a group statement to its wire shape.
func NewGroupStatementView(g GroupStatement) GroupStatementView {
	view := GroupStatementView{
		Period:            g.Period.Label,
		Principal:         NewStatementView(g.Principal),
		Subtotal:          g.Subtotal,
		TotalTax:          g.TotalTax,
		GrandTotal:        g.GrandTotal,
		GrandTotalDisplay: FormatColones(g.GrandTotal),
	}
	if g.GroupID != (uuid.UUID{}) {
		view.GroupID = g.GroupID.String()
		view.GroupName = g.GroupName
	}
	for _, m := range g.Members {
		mv := MemberView{ClientID: m.ClientID.String(), ClientName: m.ClientName, Error: m.Err}
		if m.Statement != nil {
			sv := NewStatementView(*m.Statement)
			mv.Statement = &sv
		}
		view.Members = append(view.Members, mv)
	}
	return view
}

// RosterView is the wire shape of a roster-wide report.
type RosterView struct {
	Period            string       `json:"period"`
	Entries           []RosterSlot `json:"entries"`
	Subtotal          float64      `json:"subtotal"`
	TotalTax          float64      `json:"total_tax"`
	GrandTotal        float64      `json:"grand_total"`
	GrandTotalDisplay string       `json:"grand_total_display"`
}

// RosterSlot is one client's slot, either a statement or an error.
type RosterSlot struct {
	ClientID   string         `json:"client_id"`
	ClientName string         `json:"client_name"`
	Statement  *StatementView `json:"statement,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// NewRosterView maps a roster report to its wire shape. When dueOnly
// is set, zero-activity clients are dropped (the "outstanding dues"
// view); otherwise every active client appears, zeros included.
func NewRosterView(r RosterReport, dueOnly bool) RosterView {
	view := RosterView{
		Period:            r.Period.Label,
		Entries:           []RosterSlot{},
		Subtotal:          r.Subtotal,
		TotalTax:          r.TotalTax,
		GrandTotal:        r.GrandTotal,
		GrandTotalDisplay: FormatColones(r.GrandTotal),
	}
	for _, entry := range r.Entries {
		if dueOnly && entry.Err == "" && (entry.Statement == nil || !entry.Statement.HasActivity()) {
			continue
		}
		slot := RosterSlot{ClientID: entry.ClientID.String(), ClientName: entry.ClientName, Error: entry.Err}
		if entry.Statement != nil {
			sv := NewStatementView(*entry.Statement)
			slot.Statement = &sv
		}
		view.Entries = append(view.Entries, slot)
	}
	return view
}
