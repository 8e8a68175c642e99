package constvars

const (
	MongoCollectionInvoices       = "invoices"
	MongoCollectionApprovals      = "approvals"
	MongoCollectionCompanies      = "companies"
	MongoCollectionPatients       = "patients"
	MongoCollectionSurgeryCases   = "surgery_cases"
	MongoCollectionServiceOrders  = "service_orders"
	MongoCollectionCompanyBudgets = "company_budget_entries"
)
