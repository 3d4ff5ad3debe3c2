package constants

import (
	"time"
)

// RootID is the sentinel id of the workspace root folder.
// The backend represents the root as a null parent_id; the client always uses "0".
const RootID = "0"

// Upload thresholds
const (
	// MaxUploadSize - files larger than this are rejected before hashing (256 MiB).
	// A file of exactly this size is accepted.
	MaxUploadSize = 256 * 1024 * 1024

	// SingleShotThreshold - files strictly below this size go through the
	// multipart POST /upload endpoint (90 MiB). Everything else is chunked.
	SingleShotThreshold = 90 * 1024 * 1024

	// ChunkSize - size of each PUT in the chunked upload protocol (10 MiB).
	// The last chunk may be shorter.
	ChunkSize = 10 * 1024 * 1024

	// ChunkedProgressCap - chunked uploads never report more than this until
	// the completion call has succeeded.
	ChunkedProgressCap = 99

	// HashBufferSize - read buffer used while hashing file content (1 MiB).
	HashBufferSize = 1024 * 1024
)

// Folder listing
const (
	// DefaultPageSize - limit sent on GET /files when paging through a folder.
	DefaultPageSize = 200

	// MaxFolderNameLength mirrors the backend's folder name validation.
	MaxFolderNameLength = 255
)

// Polling and health
const (
	// ScanPollInterval - how often the scan status poller inspects the model.
	ScanPollInterval = 5 * time.Second

	// MinScanPollInterval - configured intervals below this are clamped.
	MinScanPollInterval = 1 * time.Second

	// HealthCheckTimeout - the backend health probe aborts after this long.
	HealthCheckTimeout = 5 * time.Second
)

// Event bus sizing
const (
	// EventBusDefaultBuffer - per-subscriber channel buffer when none is given.
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - upper bound on a subscriber channel buffer.
	EventBusMaxBuffer = 10000
)

// HTTP client tuning
const (
	HTTPIdleConnTimeout       = 90 * time.Second
	HTTPTLSHandshakeTimeout   = 15 * time.Second
	HTTPExpectContinueTimeout = 1 * time.Second
	HTTPDialTimeout           = 10 * time.Second
	HTTPKeepAlive             = 30 * time.Second

	// APIRequestTimeout bounds non-upload JSON calls.
	APIRequestTimeout = 60 * time.Second
)

// Retry configuration
const (
	// APIRetryMax - retryablehttp attempts for JSON API calls.
	APIRetryMax = 4

	// APIRetryWaitMin / APIRetryWaitMax bound retryablehttp backoff.
	APIRetryWaitMin = 500 * time.Millisecond
	APIRetryWaitMax = 10 * time.Second

	// ChunkMaxRetries - attempts per chunk PUT in the chunked protocol.
	ChunkMaxRetries = 5

	// RetryInitialDelay / RetryMaxDelay bound the chunk retry backoff.
	RetryInitialDelay = 200 * time.Millisecond
	RetryMaxDelay     = 15 * time.Second
)

// Client-side request pacing
const (
	// APIRatePerSec - sustained request rate of one client session.
	APIRatePerSec = 20.0

	// APIBurstCapacity - requests allowed back to back before pacing starts.
	APIBurstCapacity = 100.0
)

// Application identity
const (
	AppName        = "vaultfm"
	ConfigDirName  = "vaultfm"
	ConfigFileName = "config"
	PrefsFileName  = "prefs.json"
	EnvPrefix      = "VAULTFM_"
	RequestIDHeader = "X-Request-ID"
)
