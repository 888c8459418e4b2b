package domain

import "strings"

type CallbackAction string

const (
	CallbackConnect CallbackAction = "connect"
	CallbackSign    CallbackAction = "sign"
	CallbackSend    CallbackAction = "send"
)

// CallbackPayload is the normalized content of an inbound wallet URL.
type CallbackPayload struct {
	Action      CallbackAction
	Host        string
	Correlation string
	RequestID   string
	Address     string
	PublicKey   string
	Name        string
	Approved    *bool
	Error       string
	TxHash      string
	Signature   []string
}

// Outcome decides what a connect callback means for its session.
func (p CallbackPayload) Outcome() (ConnectedAccount, error) {
	if p.Error != "" {
		return ConnectedAccount{}, &CallbackError{Reason: ErrUserRejected, Detail: p.Error}
	}
	if strings.TrimSpace(p.Address) == "" {
		if p.Approved != nil && !*p.Approved {
			return ConnectedAccount{}, &CallbackError{Reason: ErrUserRejected, Detail: "connection was cancelled"}
		}
		return ConnectedAccount{}, &CallbackError{Reason: ErrInvalidCallback, Detail: ErrMissingAddress.Error()}
	}

	return ConnectedAccount{
		Address:   strings.TrimSpace(p.Address),
		PublicKey: strings.TrimSpace(p.PublicKey),
		Name:      p.Name,
	}, nil
}

type CallbackError struct {
	Reason error
	Detail string
}

func (e *CallbackError) Error() string {
	if e.Detail == "" {
		return e.Reason.Error()
	}
	return e.Reason.Error() + ": " + e.Detail
}

func (e *CallbackError) Unwrap() error {
	return e.Reason
}

type TransportEventKind string

const (
	EventSessionSettle TransportEventKind = "session_settle"
	EventSessionReject TransportEventKind = "session_reject"
	// EventSessionInvalid is a wallet answer that cannot complete a connect,
	// such as a settle without a starknet account.
	EventSessionInvalid TransportEventKind = "session_invalid"
	EventSessionDelete  TransportEventKind = "session_delete"
)

// TransportEvent is a pairing relay notification. Topic is the pairing topic
// for settle/reject and the session topic for delete.
type TransportEvent struct {
	Kind    TransportEventKind
	Topic   string
	Account ConnectedAccount
	Reason  string
	// SessionKey is the hex session key of a settle. It is stored only once
	// the connect it answers has been accepted.
	SessionKey string
}

// RequestResult is the reply to a sign or send round trip.
type RequestResult struct {
	TxHash    string
	Signature []string
	Err       error
}
