package app

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// NormalizeLocalViewer maps wildcard binds to loopback and returns the
// listen address together with the URL a local browser should open.
func NormalizeLocalViewer(cfgAddr string) (listenAddr, url string) {
	a := strings.TrimSpace(cfgAddr)

	if strings.HasPrefix(a, ":") {
		a = "127.0.0.1" + a
	}
	if strings.HasPrefix(a, "0.0.0.0:") {
		a = "127.0.0.1:" + strings.TrimPrefix(a, "0.0.0.0:")
	}
	return a, "http://" + a
}

// WaitTCP polls addr until it accepts connections or timeout passes.
func WaitTCP(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		c, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			_ = c.Close()
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for %s", addr)
}

func logBanner(dir, cfgPath, dbPath string) {
	log.Info("────────────────────────────────────────")
	log.Info("Studio scope")
	log.Infof(" Studio folder : %s", dir)
	log.Infof(" Config file   : %s", cfgPath)
	log.Infof(" Database      : %s", dbPath)
	log.Info("────────────────────────────────────────")
}
