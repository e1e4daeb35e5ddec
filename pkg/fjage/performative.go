// SPDX-FileCopyrightText: 2026 The fjage-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package fjage

// Performative is the speech act of a Message.
type Performative string

const (
	// Request an action to be performed.
	Request Performative = "REQUEST"
	// Agree to performing the requested action.
	Agree Performative = "AGREE"
	// Refuse to perform the requested action.
	Refuse Performative = "REFUSE"
	// Failure to perform a requested or agreed action.
	Failure Performative = "FAILURE"
	// Inform is the notification of an event.
	Inform Performative = "INFORM"
	// Confirm that the answer to a query is true.
	Confirm Performative = "CONFIRM"
	// Disconfirm confirms that the answer to a query is false.
	Disconfirm Performative = "DISCONFIRM"
	// QueryIf queries if some statement is true or false.
	QueryIf Performative = "QUERY_IF"
	// NotUnderstood notifies that a message was not understood.
	NotUnderstood Performative = "NOT_UNDERSTOOD"
	// CFP is a call for proposal.
	CFP Performative = "CFP"
	// Propose is the response to a CFP.
	Propose Performative = "PROPOSE"
	// Cancel a pending request.
	Cancel Performative = "CANCEL"
)

func (p Performative) String() string {
	if p == "" {
		return "MESSAGE"
	}
	return string(p)
}
