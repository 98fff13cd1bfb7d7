package j1939

import "github.com/kidoman/embd"

// isEmbeddedHost reports whether this machine is a known embedded board.
// Live CAN access normally only works on such hardware, so a negative
// answer triggers an advisory when a live stream starts. Package variable
// so tests can run as if on either kind of host.
var isEmbeddedHost = func() bool {
	host, _, err := embd.DetectHost()
	return err == nil && host != embd.HostNull
}
