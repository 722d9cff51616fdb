package types

import (
	ierr "github.com/invopay/invopay/internal/errors"
	"github.com/samber/lo"
)

// PaymentMethodType represents how a payment was collected
type PaymentMethodType string

const (
	PaymentMethodTypeCard         PaymentMethodType = "card"
	PaymentMethodTypeBankTransfer PaymentMethodType = "bank_transfer"
	PaymentMethodTypeCash         PaymentMethodType = "cash"
	PaymentMethodTypeOffline      PaymentMethodType = "offline"
	PaymentMethodTypeOther        PaymentMethodType = "other"
)

func (t PaymentMethodType) String() string {
	return string(t)
}

func (t PaymentMethodType) Validate() error {
	allowed := []PaymentMethodType{
		PaymentMethodTypeCard,
		PaymentMethodTypeBankTransfer,
		PaymentMethodTypeCash,
		PaymentMethodTypeOffline,
		PaymentMethodTypeOther,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid payment method type").
			WithHint("Please provide a valid payment method type").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
