package constvars

// Client-facing messages. Kept generic on 5xx paths; the DevMessage carries detail.
const (
	ErrClientSomethingWrongWithApplication = "Something went wrong with the application, please try again later"
	ErrClientCannotProcessRequest          = "Cannot process the request, please check your input"
	ErrClientServerLongRespond             = "Server took too long to respond, please try again"
	ErrClientNotAuthorized                 = "You are not authorized to perform this action"

	ErrClientInvoiceNotFound  = "Invoice not found"
	ErrClientCompanyNotFound  = "Company not found"
	ErrClientApprovalNotFound = "Approval not found"
	ErrClientPatientNotFound  = "Patient not found"

	ErrClientDuplicatePaymentReference = "A payment with this reference already exists on the invoice"
	ErrClientStaleInvoiceVersion       = "The invoice was modified by another request, please refresh and retry"
	ErrClientAmountExceedsDue          = "Payment amount exceeds the amount due on this invoice"
	ErrClientRefundExceedsPayment      = "Refund amount exceeds the refundable amount of the original payment"
	ErrClientInvoiceNotPayable         = "Invoice is not in a payable state"
	ErrClientInvoiceHasPayments        = "Invoice has outstanding payments, refund them before cancelling"
	ErrClientConventionAlreadyApplied  = "A convention is already applied to this invoice, cancel it before reapplying"
	ErrClientApprovalAlreadyOpen       = "A pending or approved approval already exists for this act"
	ErrClientApprovalNotUsable         = "Approval is not usable in its current state"
	ErrClientApprovalTransition        = "Approval cannot transition from its current state"

	ErrClientExchangeRateUnavailable = "Exchange rate for the requested currency is unavailable"
	ErrClientResourceLocked          = "Another request is processing this resource, please retry shortly"
)

// Developer messages, logged only.
const (
	ErrDevValidationFailed           = "request validation failed"
	ErrDevCannotParseJSON            = "failed to parse JSON body"
	ErrDevCannotMarshalJSON          = "failed to marshal JSON"
	ErrDevServerDeadlineExceeded     = "deadline exceeded while processing request"
	ErrDevURLParamIDValidationFailed = "URL parameter '%s' is missing or invalid"

	ErrDevDBFailedToFindDocument     = "mongodb failed to find document"
	ErrDevDBFailedToInsertDocument   = "mongodb failed to insert document"
	ErrDevDBFailedToUpdateDocument   = "mongodb failed to update document"
	ErrDevDBFailedToDeleteDocument   = "mongodb failed to delete document"
	ErrDevDBFailedToIterateDocuments = "mongodb failed to iterate documents"
	ErrDevDBStringNotObjectID        = "string is not a valid mongodb ObjectID"
	ErrDevDBTransactionFailed        = "mongodb transaction failed after retries"

	ErrDevRedisGetData = "redis failed to get data"
	ErrDevRedisSetData = "redis failed to set data"
	ErrDevRedisDelData = "redis failed to delete data"

	ErrDevRabbitMQPublish = "rabbitmq failed to publish message to queue %s"
)

const (
	ResponseSuccess = "Request processed successfully"
	ResponseUnknown = "unknown"

	CoveragePreviewSuccessMessage    = "Coverage preview computed"
	ConventionAppliedSuccessMessage  = "Company convention applied to invoice"
	PaymentRecordedSuccessMessage    = "Payment recorded"
	RefundIssuedSuccessMessage       = "Refund issued"
	InvoiceCancelledSuccessMessage   = "Invoice cancelled"
	ApprovalRequestedSuccessMessage  = "Approval requested"
	ApprovalApprovedSuccessMessage   = "Approval approved"
	ApprovalRejectedSuccessMessage   = "Approval rejected"
	ApprovalCancelledSuccessMessage  = "Approval cancelled"
	ApprovalCheckedSuccessMessage    = "Approval checked"
	ApprovalsListedSuccessMessage    = "Approvals listed"
	InvoiceFetchedSuccessMessage     = "Invoice fetched"
)
