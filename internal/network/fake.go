package network

import "github.com/sweeney/climate-agent/internal/logic"

// FakeLink is a scriptable Link for tests.
type FakeLink struct {
	// State is returned by Status.
	State logic.NetworkStatus

	// ConnectOnRequest makes RequestReconnect switch State to Connected.
	ConnectOnRequest bool

	// Requests counts RequestReconnect calls.
	Requests int

	// ResetError, if set, will be returned by ResetCredentials.
	ResetError error

	// Resets counts ResetCredentials calls.
	Resets int

	// CredentialsCleared is true after a successful ResetCredentials.
	CredentialsCleared bool
}

// Status implements Link.
func (f *FakeLink) Status() logic.NetworkStatus {
	return f.State
}

// RequestReconnect implements Link.
func (f *FakeLink) RequestReconnect() {
	f.Requests++
	if f.ConnectOnRequest {
		f.State = logic.Connected
	} else {
		f.State = logic.Connecting
	}
}

// ResetCredentials implements Link.
func (f *FakeLink) ResetCredentials() error {
	f.Resets++
	if f.ResetError != nil {
		return f.ResetError
	}
	f.CredentialsCleared = true
	return nil
}
