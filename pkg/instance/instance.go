package instance

import "os"

const EnvInstanceID = "DISPATCH_INSTANCE_ID"

// ID names the running process in logs and lock diagnostics. An explicit
// instance id wins over the container hostname.
func ID(service string) string {
	if id := os.Getenv(EnvInstanceID); id != "" {
		return id
	}
	if host := os.Getenv("HOSTNAME"); host != "" {
		return service + "@" + host
	}
	return service + "@local"
}
