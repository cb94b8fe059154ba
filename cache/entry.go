package cache

import (
	"encoding/json"
	"net/http"
	"time"
)

// entry is the metadata record persisted per fingerprint: everything needed
// to reconstruct and validate a cached response except the body, which
// lives in the BlobStore under the same fingerprint.
type entry struct {
	Fingerprint   string      `json:"fingerprint"`
	RequestURL    string      `json:"request_url"`
	RequestMethod string      `json:"request_method"`
	Status        int         `json:"status"`
	Header        http.Header `json:"header"`
	StoredAt      time.Time   `json:"stored_at"`
	LastAccessed  time.Time   `json:"last_accessed"`
	PayloadSize   int         `json:"payload_size"`
}

func (e *entry) serialize() ([]byte, error) {
	return json.Marshal(e)
}

func deserializeEntry(data []byte) (*entry, error) {
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
