package systemx

import (
	"log"
	"net"
	"os"
	"os/user"
	"strings"
)

// HostnameOrLocalhost returns the hostname, otherwise fallsback to localhost.
func HostnameOrLocalhost() string {
	const localhost = "localhost"
	return HostnameOrDefault(localhost)
}

// HostnameOrDefault returns the hostname, or the provided fallback.
func HostnameOrDefault(fallback string) string {
	var (
		err      error
		hostname string
	)

	if hostname, err = os.Hostname(); err != nil {
		log.Println("failed to get hostname", err)
		return fallback
	}

	return hostname
}

// WorkingDirectoryOrDefault loads the working directory or fallsback to the provided
// path when an error occurs.
func WorkingDirectoryOrDefault(fallback string) (dir string) {
	var (
		err error
	)

	if dir, err = os.Getwd(); err != nil {
		log.Println("failed to get working directory", err)
		return fallback
	}

	return dir
}

// CurrentUserOrDefault returns the current user or the default configured user.
// (usually root)
func CurrentUserOrDefault(d user.User) (result *user.User) {
	var (
		err error
	)

	if result, err = user.Current(); err != nil {
		log.Println("failed to retrieve current user, using default", err)
		tmp := d
		return &tmp
	}

	return result
}

// FileExists returns true IFF a non-directory file exists at the provided path.
func FileExists(path string) bool {
	info, err := os.Stat(path)

	if os.IsNotExist(err) {
		return false
	}

	if err != nil || info.IsDir() {
		return false
	}

	return true
}

// IsLocalhost returns true if the provided host refers to the current machine.
func IsLocalhost(host string) bool {
	host = strings.TrimSpace(host)
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return true
	}

	hostname := HostnameOrLocalhost()
	if strings.EqualFold(host, hostname) {
		return true
	}

	if idx := strings.Index(hostname, "."); idx > 0 && strings.EqualFold(host, hostname[:idx]) {
		return true
	}

	addrs, err := net.LookupIP(host)
	if err != nil {
		return false
	}

	for _, addr := range addrs {
		if addr.IsLoopback() {
			return true
		}
	}

	return false
}
