package constvars

type contextKey string

const (
	CONTEXT_REQUEST_ID_KEY           contextKey = "requestID"
	CONTEXT_IS_CLIENT_REQUEST_ID_KEY contextKey = "isClientRequestID"
	CONTEXT_AUTHOR_KEY               contextKey = "author"
)

const (
	AppName = "medflow-service"

	// DefaultAuthor is recorded on payments and refunds when the gateway
	// forwards no X-Author header.
	DefaultAuthor = "system"
)
