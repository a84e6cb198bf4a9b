package models

// Region is a hosting-provider data-center location chosen for session
// placement.
type Region string

const (
	RegionUSWest      Region = "us-west-2"
	RegionUSEast      Region = "us-east-1"
	RegionEUCentral   Region = "eu-central-1"
	RegionAPSoutheast Region = "ap-southeast-1"
)

// Session identifies a remote hosted browser instance.
type Session struct {
	// SessionID is the opaque identifier issued by the hosting provider.
	// It is the sole handle used for action execution and cleanup.
	SessionID string `json:"sessionId"`

	// SessionURL is a human-viewable live-debug URL. It carries no
	// functional weight.
	SessionURL string `json:"sessionUrl"`

	// ContextID identifies the persisted browser profile (cookies,
	// storage) the session is bound to. Callers may reuse it across
	// independent runs.
	ContextID string `json:"contextId"`
}
