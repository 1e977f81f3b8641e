// Package deriv speaks the Deriv/Binary websocket API: outbound request
// shapes, a closed set of inbound message variants, and a gorilla/websocket
// client that carries them.
package deriv

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// DefaultURL is the public API endpoint used when no URL is configured.
const DefaultURL = "wss://ws.binaryws.com/websockets/v3?app_id=1089"

// Request is any outbound message. Every request is stamped with a req_id
// before it is written to the socket.
type Request interface {
	SetReqID(id int64)
}

// Envelope carries the correlation identifier shared by all requests.
type Envelope struct {
	ReqID int64 `json:"req_id,omitempty"`
}

// SetReqID implements Request.
func (e *Envelope) SetReqID(id int64) { e.ReqID = id }

// AuthorizeRequest authenticates the session with an API token.
type AuthorizeRequest struct {
	Authorize string `json:"authorize"`
	Envelope
}

// BalanceRequest fetches the balance and optionally streams updates.
type BalanceRequest struct {
	Balance   int `json:"balance"`
	Subscribe int `json:"subscribe,omitempty"`
	Envelope
}

// ActiveSymbolsRequest lists tradeable instruments.
type ActiveSymbolsRequest struct {
	ActiveSymbols string `json:"active_symbols"`
	ProductType   string `json:"product_type,omitempty"`
	Envelope
}

// ProposalRequest asks for a price quote on a contract.
type ProposalRequest struct {
	Proposal     int     `json:"proposal"`
	Amount       float64 `json:"amount"`
	Basis        string  `json:"basis"`
	ContractType string  `json:"contract_type"`
	Currency     string  `json:"currency"`
	Duration     int     `json:"duration"`
	DurationUnit string  `json:"duration_unit"`
	Symbol       string  `json:"symbol"`
	Envelope
}

// BuyRequest purchases a previously quoted proposal.
type BuyRequest struct {
	Buy   string  `json:"buy"`
	Price float64 `json:"price"`
	Envelope
}

// SellRequest sells an open contract. A price of 0 accepts the market price.
type SellRequest struct {
	Sell  int64   `json:"sell"`
	Price float64 `json:"price"`
	Envelope
}

// ContractSubscribeRequest streams updates for one open contract.
type ContractSubscribeRequest struct {
	ProposalOpenContract int   `json:"proposal_open_contract"`
	ContractID           int64 `json:"contract_id"`
	Subscribe            int   `json:"subscribe"`
	Envelope
}

// NewAuthorize builds an authorize request.
func NewAuthorize(token string) *AuthorizeRequest {
	return &AuthorizeRequest{Authorize: token}
}

// NewBalanceSubscribe builds a streaming balance request.
func NewBalanceSubscribe() *BalanceRequest {
	return &BalanceRequest{Balance: 1, Subscribe: 1}
}

// NewActiveSymbols builds the brief instrument discovery request.
func NewActiveSymbols() *ActiveSymbolsRequest {
	return &ActiveSymbolsRequest{ActiveSymbols: "brief", ProductType: "basic"}
}

// NewProposal builds a stake-based single tick proposal.
func NewProposal(symbol, contractType, currency string, stake float64) *ProposalRequest {
	return &ProposalRequest{
		Proposal:     1,
		Amount:       stake,
		Basis:        "stake",
		ContractType: contractType,
		Currency:     currency,
		Duration:     1,
		DurationUnit: "t",
		Symbol:       symbol,
	}
}

// NewBuy builds a purchase of the given proposal at the quoted price.
func NewBuy(proposalID string, price float64) *BuyRequest {
	return &BuyRequest{Buy: proposalID, Price: price}
}

// NewSell builds a market sell for an open contract.
func NewSell(contractID int64) *SellRequest {
	return &SellRequest{Sell: contractID, Price: 0}
}

// NewContractSubscribe builds a contract update subscription.
func NewContractSubscribe(contractID int64) *ContractSubscribeRequest {
	return &ContractSubscribeRequest{ProposalOpenContract: 1, ContractID: contractID, Subscribe: 1}
}

// APIError is the {code, message} pair carried by failed responses.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("deriv: %s: %s", e.Code, e.Message)
}

// flexID unmarshals an identifier sent either as a JSON number or a string.
type flexID int64

func (f *flexID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = 0
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		v, err := strconv.ParseInt(n.String(), 10, 64)
		if err != nil {
			return fmt.Errorf("deriv: id %q: %w", n, err)
		}
		*f = flexID(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("deriv: id %q: %w", s, err)
	}
	*f = flexID(v)
	return nil
}

// flexFloat unmarshals a number that some endpoints send as a string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = 0
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		*f = flexFloat(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("deriv: number %q: %w", s, err)
	}
	*f = flexFloat(v)
	return nil
}
