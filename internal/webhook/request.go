package webhook

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// InboundRequest is the snapshot of one HTTP delivery shared by the
// authenticator and the audit recorder. Body holds the bytes exactly as received.
type InboundRequest struct {
	Method       string
	URL          string
	Header       http.Header
	Body         []byte
	Query        url.Values
	ClientIP     string
	ForwardedFor string
	ReceivedAt   time.Time
}

// FromHTTP builds an InboundRequest. ClientIP is the direct peer address; the
// X-Forwarded-For chain is kept separately and never trusted on its own.
// Repeated X-Forwarded-For lines are joined into one chain.
func FromHTTP(r *http.Request, body []byte, receivedAt time.Time) *InboundRequest {
	return &InboundRequest{
		Method:       r.Method,
		URL:          r.URL.RequestURI(),
		Header:       r.Header.Clone(),
		Body:         body,
		Query:        r.URL.Query(),
		ClientIP:     remoteIP(r.RemoteAddr),
		ForwardedFor: strings.Join(r.Header.Values("X-Forwarded-For"), ","),
		ReceivedAt:   receivedAt,
	}
}

// ForwardedIPs splits the X-Forwarded-For chain into trimmed, non-empty entries.
func (r *InboundRequest) ForwardedIPs() []string {
	if r.ForwardedFor == "" {
		return nil
	}
	parts := strings.Split(r.ForwardedFor, ",")
	ips := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ips = append(ips, p)
		}
	}
	return ips
}

func remoteIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
