package rtc

import (
	"strings"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/devcord-rt/internal/config"
)

const defaultSTUN = "stun:stun.l.google.com:19302"

// ClientConfig builds the configuration browsers use for their mesh peer
// connections. Without configured servers it falls back to public STUN.
func ClientConfig(servers []config.ICEServer) webrtc.Configuration {
	out := make([]webrtc.ICEServer, 0, len(servers))
	for _, s := range servers {
		urls := make([]string, 0, len(s.URLs))
		for _, u := range s.URLs {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
		if len(urls) == 0 {
			continue
		}
		srv := webrtc.ICEServer{URLs: urls, Username: s.Username}
		if s.Credential != "" {
			srv.Credential = s.Credential
		}
		out = append(out, srv)
	}
	if len(out) == 0 {
		out = append(out, webrtc.ICEServer{URLs: []string{defaultSTUN}})
	}
	return webrtc.Configuration{ICEServers: out}
}
