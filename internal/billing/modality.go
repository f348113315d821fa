package billing

// Classify derives the display category for a client's obligations
// from the collected line items. Priority order: monthly installments
// win over stage-completed, stage-completed over one-time, then
// hourly, then expenses-only, then none. Cancelled records do not
// count toward any category.
func Classify(items Collected, minutes int) Modality {
	var stage, oneTime, hasOther bool
	for _, inst := range items.Installments {
		if inst.Status == InstallmentCancelled {
			continue
		}
		if inst.Tag == TagMonthly {
			return ModalityMonthly
		}
		switch inst.Tag {
		case TagStageCompleted:
			stage = true
		case TagOneTime:
			oneTime = true
		}
	}
	for _, charge := range items.ServiceCharges {
		if charge.Status == ChargeCancelled {
			continue
		}
		switch charge.Tag {
		case TagStageCompleted:
			stage = true
		case TagOneTime:
			oneTime = true
		default:
			hasOther = true
		}
	}
	for _, exp := range items.Expenses {
		if exp.Status == ExpenseCancelled {
			continue
		}
		switch exp.Tag {
		case TagStageCompleted:
			stage = true
		case TagOneTime:
			oneTime = true
		default:
			hasOther = true
		}
	}
	switch {
	case stage:
		return ModalityStageCompleted
	case oneTime:
		return ModalityOneTime
	case minutes > 0:
		return ModalityHourly
	case hasOther:
		return ModalityExpensesOnly
	default:
		return ModalityNone
	}
}
