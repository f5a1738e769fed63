package native

import (
	"fmt"
	"sync"

	"github.com/Masterminds/semver/v3"
)

// LibraryVersion is the engine's release.
const LibraryVersion = "0.4.0"

// Flags for GlobalInit.
const (
	GlobalSSL     = 1 << 0
	GlobalWin32   = 1 << 1
	GlobalAll     = GlobalSSL | GlobalWin32
	GlobalNothing = 0
	GlobalDefault = GlobalAll
)

var global struct {
	mu    sync.Mutex
	refs  int
	flags int
}

// GlobalInit acquires a reference on process wide engine state. Every call
// must be balanced by GlobalCleanup.
func GlobalInit(flags int) Code {
	if flags&^GlobalAll != 0 {
		return BadFunctionArgument
	}

	global.mu.Lock()
	defer global.mu.Unlock()

	if global.refs == 0 {
		global.flags = flags
	}
	global.refs++

	return OK
}

// GlobalCleanup releases a reference taken with GlobalInit. Extra calls are
// ignored.
func GlobalCleanup() {
	global.mu.Lock()
	defer global.mu.Unlock()

	if global.refs > 0 {
		global.refs--
	}
	if global.refs == 0 {
		global.flags = 0
	}
}

// GlobalRefs reports the number of outstanding GlobalInit references.
func GlobalRefs() int {
	global.mu.Lock()
	defer global.mu.Unlock()

	return global.refs
}

// ensureGlobal is called by Init. The first session in a process that never
// called GlobalInit takes a permanent reference, which matches sessions
// created before explicit initialization.
func ensureGlobal() {
	global.mu.Lock()
	defer global.mu.Unlock()

	if global.refs == 0 {
		global.refs = 1
		global.flags = GlobalDefault
	}
}

// Version returns the engine's identification string.
func Version() string {
	return fmt.Sprintf("xfer-native/%s http ftp ftps file", LibraryVersion)
}

// VersionInfo is the parsed engine version plus its feature set.
type VersionInfo struct {
	Version   *semver.Version
	Protocols []string
	Features  []string
}

// GetVersionInfo returns details about the running engine.
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:   semver.MustParse(LibraryVersion),
		Protocols: []string{"file", "ftp", "ftps", "http", "https"},
		Features:  []string{"HTTP2", "HTTP3", "IPv6", "SSL", "libz", "UnixSockets", "AsynchDNS"},
	}
}

// CheckVersion reports whether the engine satisfies constraint, for example
// ">= 0.3, < 1".
func CheckVersion(constraint string) (bool, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("parsing constraint %q: %w", constraint, err)
	}

	return c.Check(semver.MustParse(LibraryVersion)), nil
}
