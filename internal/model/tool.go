package model

// ToolInvocationResult is one tool exchange from an assistant turn: the tool
// that ran, the arguments it was given, and whatever it returned. Arguments
// and RawResult are opaque; any string inside them may itself be encoded JSON.
type ToolInvocationResult struct {
	Name       string
	ToolCallID string
	Arguments  any
	RawResult  any
}

// ConnectLinkParams are the pieces of an account-linking URL needed to start
// the connect flow. Both fields must be non-empty for the link to count.
type ConnectLinkParams struct {
	Token         string
	AppIdentifier string
}

// Valid reports whether both token and app identifier are present.
func (p ConnectLinkParams) Valid() bool {
	return p.Token != "" && p.AppIdentifier != ""
}
