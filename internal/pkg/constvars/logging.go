package constvars

const (
	LoggingRequestIDKey    = "request_id"
	LoggingRequestKey      = "request"
	LoggingResponseKey     = "response"
	LoggingMethodKey       = "method"
	LoggingEndpointKey     = "endpoint"
	LoggingQueryKey        = "query"
	LoggingRemoteAddrKey   = "remote_addr"
	LoggingUserAgentKey    = "user_agent"
	LoggingStatusCodeKey   = "status_code"
	LoggingDurationKey     = "duration"
	LoggingSuccessKey      = "success"
	LoggingErrorTypeKey    = "error_type"
	LoggingErrorCodeKey    = "error_code"
	LoggingErrorMessageKey = "error_message"

	LoggingInvoiceIDKey    = "invoice_id"
	LoggingPatientIDKey    = "patient_id"
	LoggingCompanyIDKey    = "company_id"
	LoggingApprovalIDKey   = "approval_id"
	LoggingPaymentIDKey    = "payment_id"
	LoggingReferenceKey    = "payment_reference"
	LoggingVersionKey      = "invoice_version"
	LoggingAmountKey       = "amount"
	LoggingActCodeKey      = "act_code"
	LoggingCaseIDKey       = "case_id"
	LoggingOrderIDKey      = "order_id"
	LoggingQueueKey        = "queue"
	LoggingRedisKey        = "redis_key"
	LoggingLockValueKey    = "lock_value"
	LoggingLockExpiryKey   = "lock_expiration"
	LoggingAttemptKey      = "attempt"
	LoggingCurrencyKey     = "currency"
	LoggingWarningsKey     = "warnings"
	LoggingItemCodeKey     = "item_code"
	LoggingRefundIDKey     = "refund_id"
	LoggingCancelReasonKey = "cancel_reason"
)
