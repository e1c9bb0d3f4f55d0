package domain

// Application and permit status values.
const (
	StatusApproved      = "approved"
	StatusPendingReview = "pending review"
	StatusUnderReview   = "under review"
)

// Bill is an outstanding utility bill keyed by service address.
type Bill struct {
	Address string  `json:"address" yaml:"address"`
	Amount  float64 `json:"amount" yaml:"amount"`
	Type    string  `json:"type" yaml:"type"`
	DueDate string  `json:"due_date" yaml:"due_date"`
	Account string  `json:"account" yaml:"account"`
}

// Ticket is a parking or traffic citation keyed by ticket number.
type Ticket struct {
	ID       string  `json:"id" yaml:"id"`
	Amount   float64 `json:"amount" yaml:"amount"`
	Type     string  `json:"type" yaml:"type"`
	Location string  `json:"location" yaml:"location"`
	Date     string  `json:"date" yaml:"date"`
}

// Application is a submitted permit or license application.
type Application struct {
	ID        string `json:"id" yaml:"id"`
	Type      string `json:"type" yaml:"type"`
	Status    string `json:"status" yaml:"status"`
	Address   string `json:"address" yaml:"address"`
	Submitted string `json:"submitted" yaml:"submitted"`
}

// GarageSalePermit is an issued garage-sale permit. Year and Status
// drive the annual per-address quota.
type GarageSalePermit struct {
	ID       string  `json:"id" yaml:"id"`
	Address  string  `json:"address" yaml:"address"`
	Year     int     `json:"year" yaml:"year"`
	Status   string  `json:"status" yaml:"status"`
	SaleDate string  `json:"sale_date,omitempty" yaml:"sale_date,omitempty"`
	Days     int     `json:"days,omitempty" yaml:"days,omitempty"`
	Fee      float64 `json:"fee,omitempty" yaml:"fee,omitempty"`
}

// Approved reports whether the permit counts toward the quota.
func (p GarageSalePermit) Approved() bool {
	return p.Status == StatusApproved
}
