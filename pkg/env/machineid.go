package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// MachineID retrieves the ID identifying the machine, scoped to this
// application so the raw machine ID isn't exposed. It falls back to the
// host name.
func MachineID() string {
	id, err := machineid.ProtectedID("h7link")
	if err == nil {
		return id[:16]
	}
	glog.Warningf("machine id unavailable: %v", err)
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "unknown"
}
