package aci

import "encoding/json"

// GeneralErrorKey marks history entries whose payload could not be parsed
// as an ACI response.
const GeneralErrorKey = "GENERAL_ERROR"

// TransactionSummary is the normalized record stored on the order for each
// provider response. Immutable once created.
type TransactionSummary struct {
	TransactionID     string            `json:"transactionID"`
	TransactionType   string            `json:"transactionType"`
	Result            Result            `json:"result"`
	Amount            string            `json:"amount,omitempty"`
	Timestamp         string            `json:"transactionTimeStamp,omitempty"`
	TransactionStatus string            `json:"transactionStatus"`
	ResultDetails     map[string]string `json:"resultDetails,omitempty"`
	Risk              json.RawMessage   `json:"risk,omitempty"`
	ReferencedID      string            `json:"referencedId,omitempty"`
}

// Summarize extracts a TransactionSummary from a parsed response.
// Authorization and immediate-capture responses carry risk and result
// details; capture, refund and reversal responses carry the referenced
// transaction ID instead.
func Summarize(resp *PaymentResponse) TransactionSummary {
	typ := resp.TransactionType()
	s := TransactionSummary{
		TransactionID:     resp.ID,
		TransactionType:   typ,
		Result:            resp.Result,
		Amount:            resp.Amount,
		Timestamp:         resp.Timestamp,
		TransactionStatus: ClassifyResultCode(resp.Result.Code),
	}
	switch typ {
	case TypePreauthorization, TypeDebit:
		s.ResultDetails = resp.ResultDetails
		s.Risk = resp.Risk
	default:
		s.ReferencedID = resp.ReferencedID
	}
	return s
}

// HistoryKey builds the "<TYPE>_<STATUS>" key a summary is stored under,
// e.g. AUTHORISATION_SUCCESS.
func HistoryKey(s TransactionSummary) string {
	name, ok := transactionTypeNames[s.TransactionType]
	if !ok {
		name = s.TransactionType
	}
	return name + "_" + s.TransactionStatus
}

// SummarizeRaw turns any provider payload into a history entry. Service
// timeouts return plain strings where capture/refund errors return JSON;
// anything that does not parse as a response degrades to a GENERAL_ERROR
// entry wrapping the payload unmodified. Never fails.
func SummarizeRaw(payload []byte) (key string, entry json.RawMessage) {
	var resp PaymentResponse
	if err := json.Unmarshal(payload, &resp); err != nil || resp.Result.Code == "" {
		raw, _ := json.Marshal(string(payload))
		return GeneralErrorKey, raw
	}
	s := Summarize(&resp)
	data, err := json.Marshal(s)
	if err != nil {
		raw, _ := json.Marshal(string(payload))
		return GeneralErrorKey, raw
	}
	return HistoryKey(s), data
}
