package domain

// Intent is the inferred transactional goal of a message.
type Intent string

const (
	IntentNone            Intent = ""
	IntentGreeting        Intent = "greeting"
	IntentPayBill         Intent = "pay_bill"
	IntentPayTicket       Intent = "pay_ticket"
	IntentApplyPermit     Intent = "apply_permit"
	IntentReportIssue     Intent = "report_issue"
	IntentCheckStatus     Intent = "check_status"
	IntentEscalate        Intent = "escalate"
	IntentDownloadReceipt Intent = "download_receipt"
	IntentPayAnother      Intent = "pay_another"
	IntentFarewell        Intent = "farewell"
	IntentMenuReturn      Intent = "menu_return"
	IntentRestart         Intent = "restart"
	IntentRepeatLast      Intent = "repeat_last"
	IntentOther           Intent = "other"
)

// Actionable reports whether the intent starts a task flow.
func (i Intent) Actionable() bool {
	switch i {
	case IntentPayBill, IntentPayTicket, IntentApplyPermit, IntentReportIssue, IntentCheckStatus:
		return true
	default:
		return false
	}
}

// PermitTypeGarageSale is the entity value the classifier sets for
// garage-sale phrasing.
const PermitTypeGarageSale = "garage_sale"
