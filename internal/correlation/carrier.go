package correlation

import "net/http"

// Header is the canonical header under which the resolved correlation id
// travels on outbound responses and requests.
const Header = "X-Correlation-ID"

// inboundHeaders are checked in priority order when extracting an id from
// an incoming carrier.
var inboundHeaders = []string{
	Header,
	"X-Request-ID",
	"X-Trace-ID",
}

// ExtractFromCarrier returns the first correlation id found in the header
// map, checking the recognized header names in priority order.
func ExtractFromCarrier(h http.Header) (string, bool) {
	for _, name := range inboundHeaders {
		if v := h.Get(name); v != "" {
			return v, true
		}
	}
	return "", false
}

// AddToCarrier sets the correlation id on the header map under the
// canonical name. An empty id is a no-op.
func AddToCarrier(h http.Header, id string) {
	if id == "" {
		return
	}
	h.Set(Header, id)
}
