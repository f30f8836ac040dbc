package lnurl

import golnurl "github.com/fiatjaf/go-lnurl"

// Tags of the first-step responses.
const (
	TagWithdraw = "withdrawRequest"
	TagPay      = "payRequest"
	TagChannel  = "channelRequest"
	TagLogin    = "login"
)

// Status is the {"status","reason"} envelope every LNURL callback answers with.
type Status = golnurl.LNURLResponse

func OK() Status { return golnurl.OkResponse() }

func Error(reason string) Status { return Status{Status: "ERROR", Reason: reason} }

// WithdrawRequest is the LUD-03 first step.
type WithdrawRequest struct {
	Tag                string `json:"tag"`
	K1                 string `json:"k1"`
	Callback           string `json:"callback"`
	MinWithdrawable    int64  `json:"minWithdrawable"`
	MaxWithdrawable    int64  `json:"maxWithdrawable"`
	DefaultDescription string `json:"defaultDescription"`
}

// PayRequest is the LUD-06 first step.
type PayRequest struct {
	Tag            string `json:"tag"`
	Callback       string `json:"callback"`
	MinSendable    int64  `json:"minSendable"`
	MaxSendable    int64  `json:"maxSendable"`
	Metadata       string `json:"metadata"`
	CommentAllowed int    `json:"commentAllowed"`
}

// PayValues is the LUD-06 callback answer.
type PayValues struct {
	PR     string `json:"pr"`
	Routes []any  `json:"routes"`
}

// ChannelRequest is the LUD-02 first step.
type ChannelRequest struct {
	Tag      string `json:"tag"`
	K1       string `json:"k1"`
	URI      string `json:"uri"`
	Callback string `json:"callback"`
}
