package utils

import (
	"github.com/google/uuid"
)

func GenerateRequestID() string {
	return uuid.NewString()
}

func GeneratePaymentReference() string {
	return uuid.NewString()
}
