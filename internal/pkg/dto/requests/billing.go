package requests

type ServiceRefRequest struct {
	Kind    string `json:"kind" validate:"required,oneof=surgery pharmacy optical lab"`
	OrderID string `json:"orderId"`
}

type BillingItemRequest struct {
	Code                string             `json:"code" validate:"required"`
	Description         string             `json:"description"`
	Category            string             `json:"category" validate:"required"`
	Quantity            int                `json:"quantity" validate:"required,gte=1"`
	UnitPrice           float64            `json:"unitPrice" validate:"gte=0"`
	Discount            float64            `json:"discount" validate:"gte=0"`
	Tax                 float64            `json:"tax" validate:"gte=0"`
	ServiceRef          *ServiceRefRequest `json:"serviceRef,omitempty"`
	ExternalFulfillment bool               `json:"externalFulfillment"`
}

type CoveragePreviewRequest struct {
	PatientID string               `json:"patientId" validate:"required"`
	CompanyID string               `json:"companyId" validate:"required"`
	Items     []BillingItemRequest `json:"items" validate:"required,min=1,dive"`
}

type ApplyConventionRequest struct {
	CompanyID string `json:"companyId" validate:"required"`
}
