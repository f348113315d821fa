package billing

import "math"

// Round2 rounds a monetary value to two decimals. Aggregation runs in
// full float precision; rounding happens exactly once, on the values
// exposed by a statement.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Aggregate reduces the collected line items for one client and period
// into a statement. This is the single shared implementation consumed
// by every call site; the arithmetic is:
//
//	hourCost   = (Σ minutes / 60) * hourlyRate
//	subtotal   = hourCost + expenses + services + installmentNet
//	totalTax   = hourCost*taxRate + installmentTax
//	grandTotal = subtotal + totalTax
//
// Expenses and service charges are stored as final amounts and are
// never taxed again. Installments flagged tax-inclusive have the tax
// portion extracted as amount/(1+taxRate).
func Aggregate(client Client, period Period, items Collected) Statement {
	hourlyRate := client.EffectiveHourlyRate()
	taxRate := client.EffectiveTaxRate()

	minutes := 0
	for _, entry := range items.TimeEntries {
		minutes += ParseMinutes(entry.Duration)
	}
	hourCost := MinutesToHours(minutes) * hourlyRate

	var expenseTotal float64
	for _, exp := range items.Expenses {
		if exp.Status == ExpenseCancelled {
			continue
		}
		expenseTotal += exp.Amount
	}

	var serviceTotal float64
	for _, charge := range items.ServiceCharges {
		if charge.Status == ChargeCancelled {
			continue
		}
		serviceTotal += charge.Total
	}

	var installmentNet, installmentTax float64
	for _, inst := range items.Installments {
		if inst.Status == InstallmentCancelled {
			continue
		}
		amount := inst.BilledAmount()
		if inst.AmountIncludesTax {
			net := amount / (1 + taxRate)
			installmentNet += net
			installmentTax += amount - net
		} else {
			installmentNet += amount
		}
	}

	subtotal := hourCost + expenseTotal + serviceTotal + installmentNet
	taxOnHours := hourCost * taxRate
	totalTax := taxOnHours + installmentTax

	return Statement{
		ClientID:         client.ID,
		ClientName:       client.Name,
		Period:           period,
		Minutes:          minutes,
		Hours:            Round2(MinutesToHours(minutes)),
		HourlyRate:       hourlyRate,
		HourCost:         Round2(hourCost),
		ExpenseTotal:     Round2(expenseTotal),
		ServiceTotal:     Round2(serviceTotal),
		InstallmentNet:   Round2(installmentNet),
		InstallmentTax:   Round2(installmentTax),
		Subtotal:         Round2(subtotal),
		TaxOnHours:       Round2(taxOnHours),
		TotalTax:         Round2(totalTax),
		GrandTotal:       Round2(subtotal + totalTax),
		Modality:         Classify(items, minutes),
		ApprovalRequired: client.ApprovalRequired,
	}
}
