// Package protocol implements the wire codec for the external interface
// (spec.md §6): line-delimited JSON request/response frames on a reliable
// byte stream. Each request yields exactly one response frame.
package protocol

import (
	"github.com/go-playground/validator/v10"
)

// Request is the generic envelope every inbound frame decodes into before
// its `values` are re-decoded into an operation-specific struct.
type Request struct {
	Operation string         `json:"operation"`
	Values    map[string]any `json:"values"`
}

// Operation names (spec.md §6 table).
const (
	OpLogin              = "login"
	OpLogout             = "logout"
	OpUpdateCredentials  = "updateCredentials"
	OpInsertLimitOrder   = "insertLimitOrder"
	OpInsertMarketOrder  = "insertMarketOrder"
	OpInsertStopOrder    = "insertStopOrder"
	OpCancelOrder        = "cancelOrder"
	OpGetPriceHistory    = "getPriceHistory"
	OpRegisterPriceAlert = "registerPriceAlert"
)

var validate = validator.New()

// LoginValues is the decoded `values` for OpLogin.
type LoginValues struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	UDPPort  int    `json:"udpPort"`
}

// UpdateCredentialsValues is the decoded `values` for OpUpdateCredentials.
type UpdateCredentialsValues struct {
	Username    string `json:"username" validate:"required"`
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// InsertLimitOrderValues is the decoded `values` for OpInsertLimitOrder.
type InsertLimitOrderValues struct {
	Type  string `json:"type" validate:"required,oneof=bid ask"`
	Size  int64  `json:"size" validate:"required,gt=0"`
	Price int64  `json:"price" validate:"required,gt=0"`
}

// InsertMarketOrderValues is the decoded `values` for OpInsertMarketOrder.
type InsertMarketOrderValues struct {
	Type string `json:"type" validate:"required,oneof=bid ask"`
	Size int64  `json:"size" validate:"required,gt=0"`
}

// InsertStopOrderValues is the decoded `values` for OpInsertStopOrder.
type InsertStopOrderValues struct {
	Type  string `json:"type" validate:"required,oneof=bid ask"`
	Size  int64  `json:"size" validate:"required,gt=0"`
	Price int64  `json:"price" validate:"required,gt=0"`
}

// CancelOrderValues is the decoded `values` for OpCancelOrder.
type CancelOrderValues struct {
	OrderID uint64 `json:"orderId" validate:"required"`
}

// GetPriceHistoryValues is the decoded `values` for OpGetPriceHistory.
type GetPriceHistoryValues struct {
	Month string `json:"month" validate:"required,len=6"`
}

// RegisterPriceAlertValues is the decoded `values` for
// OpRegisterPriceAlert.
type RegisterPriceAlertValues struct {
	ThresholdPrice int64 `json:"thresholdPrice" validate:"required,gt=0"`
}

// Validate runs struct-tag validation on a decoded values struct.
func Validate(v any) error {
	return validate.Struct(v)
}

// OrderIDResponse is the success/failure response for the three insert*
// operations (spec.md §6: `{orderId}`, -1 on error).
type OrderIDResponse struct {
	OrderID int64 `json:"orderId"`
}

// StatusResponse is the generic `{response, errorMessage}` envelope used
// by login/logout/updateCredentials/cancelOrder.
type StatusResponse struct {
	Response     int    `json:"response"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// LoginResponse is the success response for OpLogin. FillsToken is a
// short-lived bearer token the client presents to open the unicast fills
// websocket (internal/notify) at notify.unicast_path.
type LoginResponse struct {
	Response     int    `json:"response"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	FillsToken   string `json:"fillsToken,omitempty"`
}

// MulticastInfo accompanies a successful registerPriceAlert response
// (spec.md §6).
type MulticastInfo struct {
	MulticastAddress string `json:"multicastAddress"`
	MulticastPort    int    `json:"multicastPort"`
	ActiveUsers      int    `json:"activeUsers"`
}

// RegisterPriceAlertResponse is the success response for
// OpRegisterPriceAlert.
type RegisterPriceAlertResponse struct {
	Response      int           `json:"response"`
	MulticastInfo MulticastInfo `json:"multicastInfo"`
}
