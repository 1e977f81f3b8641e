package deriv

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alanyoungcy/vaultbot/internal/domain"
)

// Message is the closed set of inbound messages. Exactly one of the concrete
// types below is returned by Decode.
type Message interface {
	// RequestID is the req_id echoed by the server, 0 when absent.
	RequestID() int64
	// Err is the protocol error carried by the response, if any.
	Err() *APIError
	isMessage()
}

// Header holds the fields common to every response.
type Header struct {
	MsgType string
	ReqID   int64
	Error   *APIError
}

func (h Header) RequestID() int64 { return h.ReqID }
func (h Header) Err() *APIError   { return h.Error }
func (Header) isMessage()         {}

// AuthorizeResponse answers an authorize request.
type AuthorizeResponse struct {
	Header
	LoginID  string
	Balance  float64
	Currency string
}

// ActiveSymbolsResponse lists instruments reported by the venue.
type ActiveSymbolsResponse struct {
	Header
	Symbols []domain.Instrument
}

// ProposalResponse carries a price quote.
type ProposalResponse struct {
	Header
	ProposalID string
	AskPrice   float64
	Payout     float64
	Spot       float64
}

// BuyResponse confirms a purchase.
type BuyResponse struct {
	Header
	ContractID    int64
	BuyPrice      float64
	Payout        float64
	BalanceAfter  float64
	TransactionID int64
}

// ContractUpdate is one frame of a proposal_open_contract stream.
type ContractUpdate struct {
	Header
	ContractID    int64
	Underlying    string
	ContractType  string
	Status        string
	IsSold        bool
	IsValidToSell bool
	Profit        float64
	Payout        float64
	BuyPrice      float64
	EntrySpot     float64
	CurrentSpot   float64
}

// Terminal reports whether the contract has settled.
func (u *ContractUpdate) Terminal() bool {
	return u.IsSold || u.Status == "won" || u.Status == "lost" || u.Status == "sold"
}

// Won reports whether a settled contract counts as a win.
func (u *ContractUpdate) Won() bool {
	return u.Status == "won" || u.Profit > 0
}

// SellResponse confirms a sale.
type SellResponse struct {
	Header
	ContractID   int64
	SoldFor      float64
	BalanceAfter float64
}

// BalanceResponse carries the account balance, either as a one-off reply or a
// streamed update.
type BalanceResponse struct {
	Header
	Balance  float64
	Currency string
}

// envelope is the outer shape shared by every inbound frame.
type envelope struct {
	MsgType string    `json:"msg_type"`
	ReqID   flexID    `json:"req_id"`
	Error   *APIError `json:"error"`
}

type wireAuthorize struct {
	Authorize *struct {
		LoginID  string    `json:"loginid"`
		Balance  flexFloat `json:"balance"`
		Currency string    `json:"currency"`
	} `json:"authorize"`
}

type wireActiveSymbols struct {
	ActiveSymbols *[]struct {
		Symbol             string `json:"symbol"`
		DisplayName        string `json:"display_name"`
		Market             string `json:"market"`
		Submarket          string `json:"submarket"`
		ExchangeIsOpen     int    `json:"exchange_is_open"`
		IsTradingSuspended int    `json:"is_trading_suspended"`
	} `json:"active_symbols"`
}

type wireProposal struct {
	Proposal *struct {
		ID       string    `json:"id"`
		AskPrice flexFloat `json:"ask_price"`
		Payout   flexFloat `json:"payout"`
		Spot     flexFloat `json:"spot"`
	} `json:"proposal"`
}

type wireBuy struct {
	Buy *struct {
		ContractID    flexID    `json:"contract_id"`
		BuyPrice      flexFloat `json:"buy_price"`
		Payout        flexFloat `json:"payout"`
		BalanceAfter  flexFloat `json:"balance_after"`
		TransactionID flexID    `json:"transaction_id"`
	} `json:"buy"`
}

type wireOpenContract struct {
	Contract *struct {
		ContractID    flexID    `json:"contract_id"`
		Underlying    string    `json:"underlying"`
		ContractType  string    `json:"contract_type"`
		Status        *string   `json:"status"`
		IsSold        int       `json:"is_sold"`
		IsValidToSell int       `json:"is_valid_to_sell"`
		Profit        flexFloat `json:"profit"`
		Payout        flexFloat `json:"payout"`
		BuyPrice      flexFloat `json:"buy_price"`
		EntrySpot     flexFloat `json:"entry_spot"`
		CurrentSpot   flexFloat `json:"current_spot"`
	} `json:"proposal_open_contract"`
}

type wireSell struct {
	Sell *struct {
		ContractID   flexID    `json:"contract_id"`
		SoldFor      flexFloat `json:"sold_for"`
		BalanceAfter flexFloat `json:"balance_after"`
	} `json:"sell"`
}

type wireBalance struct {
	Balance *struct {
		Balance  flexFloat `json:"balance"`
		Currency string    `json:"currency"`
	} `json:"balance"`
}

// MalformedError reports a frame whose envelope decoded but whose payload did
// not. Header carries msg_type and req_id so the caller can release the
// request the frame answered.
type MalformedError struct {
	Header Header
	Err    error
}

func (e *MalformedError) Error() string { return e.Err.Error() }
func (e *MalformedError) Unwrap() error { return e.Err }

// Decode converts one raw frame into its Message variant. Frames that are not
// valid JSON or that lack the payload for their msg_type wrap
// domain.ErrMalformedMessage; when the envelope itself was readable the error
// is a *MalformedError. Frames with an unrecognised msg_type wrap
// domain.ErrUnknownMessage. Error responses decode to their variant with Err
// set and no payload fields.
func Decode(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("deriv: decode envelope: %w: %v", domain.ErrMalformedMessage, err)
	}
	if env.MsgType == "" {
		return nil, fmt.Errorf("deriv: decode: missing msg_type: %w", domain.ErrMalformedMessage)
	}
	h := Header{MsgType: env.MsgType, ReqID: int64(env.ReqID), Error: env.Error}

	msg, err := decodePayload(raw, h)
	if err != nil && errors.Is(err, domain.ErrMalformedMessage) {
		return nil, &MalformedError{Header: h, Err: err}
	}
	return msg, err
}

func decodePayload(raw []byte, h Header) (Message, error) {
	switch h.MsgType {
	case "authorize":
		msg := &AuthorizeResponse{Header: h}
		if h.Error != nil {
			return msg, nil
		}
		var w wireAuthorize
		if err := unmarshalPayload(raw, &w, h.MsgType); err != nil {
			return nil, err
		}
		if w.Authorize == nil {
			return nil, missing(h.MsgType)
		}
		msg.LoginID = w.Authorize.LoginID
		msg.Balance = float64(w.Authorize.Balance)
		msg.Currency = w.Authorize.Currency
		return msg, nil

	case "active_symbols":
		msg := &ActiveSymbolsResponse{Header: h}
		if h.Error != nil {
			return msg, nil
		}
		var w wireActiveSymbols
		if err := unmarshalPayload(raw, &w, h.MsgType); err != nil {
			return nil, err
		}
		if w.ActiveSymbols == nil {
			return nil, missing(h.MsgType)
		}
		msg.Symbols = make([]domain.Instrument, 0, len(*w.ActiveSymbols))
		for _, s := range *w.ActiveSymbols {
			if s.Symbol == "" {
				return nil, fmt.Errorf("deriv: decode active_symbols: empty symbol: %w", domain.ErrMalformedMessage)
			}
			msg.Symbols = append(msg.Symbols, domain.Instrument{
				Symbol:           s.Symbol,
				DisplayName:      s.DisplayName,
				Market:           s.Market,
				Submarket:        s.Submarket,
				ExchangeIsOpen:   s.ExchangeIsOpen == 1,
				TradingSuspended: s.IsTradingSuspended != 0,
			})
		}
		return msg, nil

	case "proposal":
		msg := &ProposalResponse{Header: h}
		if h.Error != nil {
			return msg, nil
		}
		var w wireProposal
		if err := unmarshalPayload(raw, &w, h.MsgType); err != nil {
			return nil, err
		}
		if w.Proposal == nil || w.Proposal.ID == "" {
			return nil, missing(h.MsgType)
		}
		msg.ProposalID = w.Proposal.ID
		msg.AskPrice = float64(w.Proposal.AskPrice)
		msg.Payout = float64(w.Proposal.Payout)
		msg.Spot = float64(w.Proposal.Spot)
		return msg, nil

	case "buy":
		msg := &BuyResponse{Header: h}
		if h.Error != nil {
			return msg, nil
		}
		var w wireBuy
		if err := unmarshalPayload(raw, &w, h.MsgType); err != nil {
			return nil, err
		}
		if w.Buy == nil || w.Buy.ContractID == 0 {
			return nil, missing(h.MsgType)
		}
		msg.ContractID = int64(w.Buy.ContractID)
		msg.BuyPrice = float64(w.Buy.BuyPrice)
		msg.Payout = float64(w.Buy.Payout)
		msg.BalanceAfter = float64(w.Buy.BalanceAfter)
		msg.TransactionID = int64(w.Buy.TransactionID)
		return msg, nil

	case "proposal_open_contract":
		msg := &ContractUpdate{Header: h}
		if h.Error != nil {
			return msg, nil
		}
		var w wireOpenContract
		if err := unmarshalPayload(raw, &w, h.MsgType); err != nil {
			return nil, err
		}
		if w.Contract == nil || w.Contract.ContractID == 0 {
			return nil, missing(h.MsgType)
		}
		c := w.Contract
		msg.ContractID = int64(c.ContractID)
		msg.Underlying = c.Underlying
		msg.ContractType = c.ContractType
		if c.Status != nil {
			msg.Status = *c.Status
		}
		msg.IsSold = c.IsSold == 1
		msg.IsValidToSell = c.IsValidToSell == 1
		msg.Profit = float64(c.Profit)
		msg.Payout = float64(c.Payout)
		msg.BuyPrice = float64(c.BuyPrice)
		msg.EntrySpot = float64(c.EntrySpot)
		msg.CurrentSpot = float64(c.CurrentSpot)
		return msg, nil

	case "sell":
		msg := &SellResponse{Header: h}
		if h.Error != nil {
			return msg, nil
		}
		var w wireSell
		if err := unmarshalPayload(raw, &w, h.MsgType); err != nil {
			return nil, err
		}
		if w.Sell == nil {
			return nil, missing(h.MsgType)
		}
		msg.ContractID = int64(w.Sell.ContractID)
		msg.SoldFor = float64(w.Sell.SoldFor)
		msg.BalanceAfter = float64(w.Sell.BalanceAfter)
		return msg, nil

	case "balance":
		msg := &BalanceResponse{Header: h}
		if h.Error != nil {
			return msg, nil
		}
		var w wireBalance
		if err := unmarshalPayload(raw, &w, h.MsgType); err != nil {
			return nil, err
		}
		if w.Balance == nil {
			return nil, missing(h.MsgType)
		}
		msg.Balance = float64(w.Balance.Balance)
		msg.Currency = w.Balance.Currency
		return msg, nil

	default:
		return nil, fmt.Errorf("deriv: decode: msg_type %q: %w", h.MsgType, domain.ErrUnknownMessage)
	}
}

func unmarshalPayload(raw []byte, v any, msgType string) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("deriv: decode %s: %w: %v", msgType, domain.ErrMalformedMessage, err)
	}
	return nil
}

func missing(msgType string) error {
	return fmt.Errorf("deriv: decode %s: missing payload: %w", msgType, domain.ErrMalformedMessage)
}
