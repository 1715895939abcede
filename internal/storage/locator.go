// Package storage builds download URLs for objects in the output bucket.
package storage

import (
	"net/url"
	"strings"
)

// Locator turns object keys into public URLs: endpoint/bucket/key, with the
// endpoint/bucket prefix swapped for the CDN base when one is configured.
type Locator struct {
	endpoint string
	bucket   string
	cdn      string
}

func NewLocator(endpoint, bucket, cdn string) *Locator {
	return &Locator{
		endpoint: strings.TrimRight(endpoint, "/"),
		bucket:   strings.Trim(bucket, "/"),
		cdn:      strings.TrimRight(cdn, "/"),
	}
}

// Configured reports whether an endpoint and bucket are set.
func (l *Locator) Configured() bool {
	return l != nil && l.endpoint != "" && l.bucket != ""
}

// ObjectURL returns the download URL of key, or "" when storage is not configured.
func (l *Locator) ObjectURL(key string) string {
	if !l.Configured() {
		return ""
	}
	segments := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return l.RewriteCDN(l.origin() + "/" + strings.Join(segments, "/"))
}

// RewriteCDN replaces the bucket origin in u with the CDN base.
func (l *Locator) RewriteCDN(u string) string {
	if l.cdn == "" || !l.Configured() {
		return u
	}
	return strings.Replace(u, l.origin(), l.cdn, 1)
}

func (l *Locator) origin() string {
	return l.endpoint + "/" + l.bucket
}

// RunOutputKey is the object key of an output file produced by a run.
func RunOutputKey(runID, filename string) string {
	return "outputs/runs/" + runID + "/" + filename
}
