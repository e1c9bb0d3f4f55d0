package records

import "github.com/ashureev/cityline/internal/domain"

// DefaultData returns the built-in demonstration tables.
func DefaultData() Data {
	return Data{
		Bills: []domain.Bill{
			{Address: "123 main st", Amount: 82.35, Type: "water", DueDate: "2025-06-15", Account: "WAT-001234"},
			{Address: "456 olive ave", Amount: 156.20, Type: "electricity", DueDate: "2025-06-10", Account: "ELE-005678"},
			{Address: "789 pine rd", Amount: 45.80, Type: "gas", DueDate: "2025-06-20", Account: "GAS-009876"},
			{Address: "101 oak street", Amount: 234.50, Type: "water", DueDate: "2025-06-18", Account: "WAT-001122"},
		},
		Tickets: []domain.Ticket{
			{ID: "TK001", Amount: 45.00, Type: "parking", Location: "Main St", Date: "2025-05-15"},
			{ID: "TK002", Amount: 125.00, Type: "speeding", Location: "Highway 101", Date: "2025-05-20"},
			{ID: "PK2025001", Amount: 35.00, Type: "parking meter", Location: "Downtown", Date: "2025-05-22"},
		},
		Applications: []domain.Application{
			{ID: "APP001", Type: "garage sale permit", Status: domain.StatusApproved, Address: "123 Main St", Submitted: "2025-05-10"},
			{ID: "APP002", Type: "construction permit", Status: domain.StatusPendingReview, Address: "456 Oak Ave", Submitted: "2025-05-18"},
			{ID: "APP003", Type: "business license", Status: domain.StatusUnderReview, Address: "789 Commerce St", Submitted: "2025-05-20"},
		},
		GarageSalePermits: []domain.GarageSalePermit{
			{ID: "GS-2025-001", Address: "123 Main St", Year: 2025, Status: domain.StatusApproved, SaleDate: "2025-05-17", Days: 1, Fee: 15},
			{ID: "GS-2025-002", Address: "456 Olive Ave", Year: 2025, Status: domain.StatusApproved, SaleDate: "2025-04-12", Days: 2, Fee: 20},
			{ID: "GS-2025-003", Address: "456 Olive Ave", Year: 2025, Status: domain.StatusApproved, SaleDate: "2025-05-24", Days: 1, Fee: 15},
		},
	}
}
