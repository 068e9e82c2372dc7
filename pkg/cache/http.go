package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// ResponseToEntry converts an origin response into a CacheEntry that lives
// for ttl from now.
//
// The response headers are stamped with Cache-Control: max-age=N and
// Cached-At before being copied into the entry, so the live response and the
// stored one carry the same metadata. The body is read and restored for the
// caller.
func ResponseToEntry(resp *http.Response, ttl time.Duration, now time.Time) (*CacheEntry, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}

	var body []byte
	if resp.Body != nil {
		var err error
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
		resp.Body.Close()
	}

	// Restore body for caller
	resp.Body = io.NopCloser(bytes.NewReader(body))

	if resp.Header == nil {
		resp.Header = make(http.Header)
	}
	StampHeaders(resp.Header, ttl, now)

	return &CacheEntry{
		Data:       body,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header.Clone(),
		CachedAt:   now.UTC(),
		Expires:    now.Add(ttl),
	}, nil
}

// StampHeaders sets Cache-Control and Cached-At for an entry stored at now.
func StampHeaders(h http.Header, ttl time.Duration, now time.Time) {
	h.Set(HeaderCacheControl, "max-age="+strconv.FormatInt(int64(ttl/time.Second), 10))
	h.Set(HeaderCachedAt, now.UTC().Format(CachedAtLayout))
}

// EntryToResponse rebuilds an HTTP response from a stored entry, marked as a
// cache HIT with its age at now.
func EntryToResponse(entry *CacheEntry, now time.Time) *http.Response {
	header := entry.Headers.Clone()
	if header == nil {
		header = make(http.Header)
	}
	header.Set(HeaderCacheStatus, StatusHit)
	header.Set(HeaderCacheAge, strconv.FormatInt(entry.Age(now), 10))

	status := entry.StatusCode
	if status == 0 {
		status = http.StatusOK
	}

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(entry.Data)),
		ContentLength: int64(len(entry.Data)),
	}
}
