package arr

import (
	"crypto/tls"
	"net/http"
	"syscall"
)

var syscallECONNREFUSED = syscall.ECONNREFUSED

func insecureTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- operator opt-in for self-signed Arr instances
	return t
}
