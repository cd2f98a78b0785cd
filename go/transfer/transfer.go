// Package transfer holds the domain model of the switch's transfer core:
// the two-phase transfer, its lifecycle states, the on-bus event envelope,
// and the stable error-code table shared by all coordinators.
package transfer

import (
	"time"
)

// State enumerates the lifecycle states of a transfer.
type State string

const (
	StateReceived  State = "RECEIVED"
	StateReserved  State = "RESERVED"
	StateCommitted State = "COMMITTED"
	StateAborted   State = "ABORTED"
)

// Terminal is true if no further transition may leave this state.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateAborted
}

// InFlight is true while the transfer awaits its fulfil phase.
// RECEIVED and RESERVED are deliberately equivalent here: the prepare
// pipeline may fold the two into a single atomic write.
func (s State) InFlight() bool {
	return s == StateReceived || s == StateReserved
}

// Amount is a currency code plus a decimal value kept in its wire
// representation. The core never does arithmetic on it.
type Amount struct {
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

// Extension is a single key/value pair of an extension list.
type Extension struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ExtensionList is the ordered extension sequence carried by a request,
// and copied verbatim onto error responses.
type ExtensionList []Extension

// Prepare is the payload of a transfer prepare request.
type Prepare struct {
	TransferID     string        `json:"transferId"`
	PayerFSP       string        `json:"payerFsp"`
	PayeeFSP       string        `json:"payeeFsp"`
	Amount         Amount        `json:"amount"`
	ILPPacket      string        `json:"ilpPacket"`
	Condition      string        `json:"condition"`
	ExpirationDate time.Time     `json:"expirationDate"`
	ExtensionList  ExtensionList `json:"extensionList"`
}

// Fulfil is the payload of a transfer fulfil (commit or reject) request.
type Fulfil struct {
	Fulfilment         string        `json:"fulfilment,omitempty"`
	CompletedTimestamp time.Time     `json:"completedTimestamp"`
	ExtensionList      ExtensionList `json:"extensionList,omitempty"`
}

// Transfer is the persisted snapshot of a transfer, as returned by the store.
type Transfer struct {
	TransferID         string        `json:"transferId"`
	PayerFSP           string        `json:"payerFsp"`
	PayeeFSP           string        `json:"payeeFsp"`
	Amount             Amount        `json:"amount"`
	ILPPacket          string        `json:"ilpPacket,omitempty"`
	Condition          string        `json:"condition,omitempty"`
	ExpirationDate     time.Time     `json:"expirationDate"`
	ExtensionList      ExtensionList `json:"extensionList,omitempty"`
	TransferState      State         `json:"transferState"`
	Fulfilment         string        `json:"fulfilment,omitempty"`
	CompletedTimestamp *time.Time    `json:"completedTimestamp,omitempty"`
}

// ErrorInformation is the wire shape of a failure payload.
type ErrorInformation struct {
	ErrorCode        int           `json:"errorCode"`
	ErrorDescription string        `json:"errorDescription"`
	ExtensionList    ExtensionList `json:"extensionList,omitempty"`
}

// Participant is a registered FSP of the switch.
type Participant struct {
	Name      string    `json:"name"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// TransferError is one appended row of the transfer error log.
type TransferError struct {
	TransferID       string    `json:"transferId"`
	ErrorCode        int       `json:"errorCode"`
	ErrorDescription string    `json:"errorDescription"`
	CreatedAt        time.Time `json:"createdAt"`
}
