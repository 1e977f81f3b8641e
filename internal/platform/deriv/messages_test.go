package deriv

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/alanyoungcy/vaultbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Authorize(t *testing.T) {
	msg, err := Decode([]byte(`{"msg_type":"authorize","req_id":1,"authorize":{"loginid":"CR123","balance":"100.50","currency":"USD","email":"x@y"}}`))
	require.NoError(t, err)

	auth, ok := msg.(*AuthorizeResponse)
	require.True(t, ok)
	assert.Equal(t, int64(1), auth.RequestID())
	assert.Nil(t, auth.Err())
	assert.Equal(t, "CR123", auth.LoginID)
	assert.InDelta(t, 100.50, auth.Balance, 1e-9)
	assert.Equal(t, "USD", auth.Currency)
}

func TestDecode_AuthorizeError(t *testing.T) {
	msg, err := Decode([]byte(`{"msg_type":"authorize","req_id":1,"error":{"code":"InvalidToken","message":"The token is invalid."}}`))
	require.NoError(t, err)
	require.NotNil(t, msg.Err())
	assert.Equal(t, "InvalidToken", msg.Err().Code)
	assert.Contains(t, msg.Err().Error(), "The token is invalid.")
}

func TestDecode_ActiveSymbols(t *testing.T) {
	raw := `{"msg_type":"active_symbols","req_id":"3","active_symbols":[
		{"symbol":"R_100","display_name":"Volatility 100 Index","market":"synthetic_index","submarket":"random_index","exchange_is_open":1,"is_trading_suspended":0},
		{"symbol":"frxEURUSD","display_name":"EUR/USD","market":"forex","exchange_is_open":0,"is_trading_suspended":1}
	]}`
	msg, err := Decode([]byte(raw))
	require.NoError(t, err)

	as, ok := msg.(*ActiveSymbolsResponse)
	require.True(t, ok)
	assert.Equal(t, int64(3), as.RequestID())
	require.Len(t, as.Symbols, 2)
	assert.Equal(t, "R_100", as.Symbols[0].Symbol)
	assert.True(t, as.Symbols[0].Tradeable())
	assert.False(t, as.Symbols[1].ExchangeIsOpen)
	assert.True(t, as.Symbols[1].TradingSuspended)
}

func TestDecode_ProposalAndBuy(t *testing.T) {
	msg, err := Decode([]byte(`{"msg_type":"proposal","req_id":7,"proposal":{"id":"abc-123","ask_price":0.35,"payout":0.68,"spot":1234.5}}`))
	require.NoError(t, err)
	p := msg.(*ProposalResponse)
	assert.Equal(t, "abc-123", p.ProposalID)
	assert.InDelta(t, 0.35, p.AskPrice, 1e-9)

	msg, err = Decode([]byte(`{"msg_type":"buy","req_id":8,"buy":{"contract_id":101,"buy_price":0.35,"payout":0.68,"balance_after":99.65,"transaction_id":555}}`))
	require.NoError(t, err)
	b := msg.(*BuyResponse)
	assert.Equal(t, int64(101), b.ContractID)
	assert.InDelta(t, 99.65, b.BalanceAfter, 1e-9)
}

func TestDecode_ContractUpdate(t *testing.T) {
	msg, err := Decode([]byte(`{"msg_type":"proposal_open_contract","req_id":9,"proposal_open_contract":{"contract_id":101,"underlying":"R_100","contract_type":"CALL","status":"open","is_sold":0,"is_valid_to_sell":1,"profit":0.12,"entry_spot":"100.1","current_spot":100.3}}`))
	require.NoError(t, err)
	u := msg.(*ContractUpdate)
	assert.Equal(t, int64(101), u.ContractID)
	assert.True(t, u.IsValidToSell)
	assert.False(t, u.Terminal())
	assert.InDelta(t, 100.1, u.EntrySpot, 1e-9)

	msg, err = Decode([]byte(`{"msg_type":"proposal_open_contract","proposal_open_contract":{"contract_id":101,"status":"lost","is_sold":1,"profit":-0.35}}`))
	require.NoError(t, err)
	u = msg.(*ContractUpdate)
	assert.True(t, u.Terminal())
	assert.False(t, u.Won())
}

func TestContractUpdate_WonByProfit(t *testing.T) {
	u := &ContractUpdate{Status: "sold", IsSold: true, Profit: 0.2}
	assert.True(t, u.Terminal())
	assert.True(t, u.Won())
}

func TestDecode_Failures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"not json", `{{`, domain.ErrMalformedMessage},
		{"no msg_type", `{"req_id":1}`, domain.ErrMalformedMessage},
		{"unknown type", `{"msg_type":"ticks","req_id":1}`, domain.ErrUnknownMessage},
		{"missing proposal", `{"msg_type":"proposal","req_id":1}`, domain.ErrMalformedMessage},
		{"missing contract id", `{"msg_type":"buy","buy":{"buy_price":1}}`, domain.ErrMalformedMessage},
		{"bad field type", `{"msg_type":"balance","balance":{"balance":{}}}`, domain.ErrMalformedMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.raw))
			assert.Nil(t, msg)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecode_MalformedPayloadKeepsHeader(t *testing.T) {
	_, err := Decode([]byte(`{"msg_type":"proposal","req_id":12,"proposal":{"ask_price":0.35,"payout":0.68}}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMalformedMessage)

	var me *MalformedError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "proposal", me.Header.MsgType)
	assert.Equal(t, int64(12), me.Header.ReqID)

	_, err = Decode([]byte(`{{`))
	assert.False(t, errors.As(err, &me))

	_, err = Decode([]byte(`{"msg_type":"ticks","req_id":3}`))
	assert.False(t, errors.As(err, &me))
}

func TestRequests_StampReqID(t *testing.T) {
	req := NewProposal("R_100", "CALL", "USD", 0.35)
	var r Request = req
	r.SetReqID(7)

	data, err := json.Marshal(req)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, float64(7), got["req_id"])
	assert.Equal(t, float64(1), got["proposal"])
	assert.Equal(t, "stake", got["basis"])
	assert.Equal(t, "t", got["duration_unit"])
	assert.Equal(t, float64(1), got["duration"])
	assert.Equal(t, "R_100", got["symbol"])

	sell, err := json.Marshal(NewSell(101))
	require.NoError(t, err)
	assert.JSONEq(t, `{"sell":101,"price":0}`, string(sell))
}
