package native

import (
	"crypto/tls"
	"net"
	"time"
)

// ReadFunc supplies upload data. It fills at most size*n bytes of buf and
// returns how many it wrote; 0 signals end of data.
type ReadFunc func(buf []byte, size, n int, userdata any) int

// WriteFunc receives downloaded data or, when installed as the header
// function, one header line at a time. Returning anything other than
// len(data) aborts the transfer with WriteError.
type WriteFunc func(data []byte, size, n int, userdata any) int

// ProgressFunc reports progress in floating point byte counts. A non-zero
// return aborts the transfer.
type ProgressFunc func(clientp any, dlTotal, dlNow, ulTotal, ulNow float64) int

// XferInfoFunc is ProgressFunc with integer counters.
type XferInfoFunc func(clientp any, dlTotal, dlNow, ulTotal, ulNow Off) int

// DebugFunc receives the engine's trace output.
type DebugFunc func(s *Session, typ DebugType, data []byte, userp any) int

// SeekFunc repositions the upload source, used to rewind before a resend.
type SeekFunc func(userp any, offset Off, origin int) int

// IoctlFunc is the legacy rewind hook, consulted when no SeekFunc is set.
type IoctlFunc func(s *Session, cmd int, clientp any) IOError

// SockOptFunc runs after a socket is created and before it is used.
type SockOptFunc func(clientp any, conn net.Conn, purpose SockType) int

// OpenSocketFunc replaces the dialer. It must return a connected net.Conn
// for addr, or nil to fail the connect.
type OpenSocketFunc func(clientp any, purpose SockType, addr *SockAddr) net.Conn

// CloseSocketFunc replaces closing of a connection the engine opened with
// an OpenSocketFunc.
type CloseSocketFunc func(clientp any, conn net.Conn) int

// SSLCtxFunc may adjust the TLS configuration before a handshake.
type SSLCtxFunc func(s *Session, cfg *tls.Config, userp any) Code

// ChunkBgnFunc is called before each file of a wildcard transfer.
type ChunkBgnFunc func(info *FileInfo, ptr any, remains int) int

// ChunkEndFunc is called after each file of a wildcard transfer.
type ChunkEndFunc func(ptr any) int

// FnMatchFunc overrides the wildcard pattern matcher.
type FnMatchFunc func(ptr any, pattern, str string) int

// FormGetFunc receives serialized form data from FormGet. It returns the
// number of bytes it consumed.
type FormGetFunc func(arg any, buf []byte) int

const (
	ReadFuncAbort = 0x10000000
	ReadFuncPause = 0x10000001

	WriteFuncPause = 0x10000001
)

const (
	SeekFuncOK       = 0
	SeekFuncFail     = 1
	SeekFuncCantSeek = 2
)

// IOError is the result of an IoctlFunc.
type IOError int

const (
	IOEOK          IOError = 0
	IOEUnknownCmd  IOError = 1
	IOEFailRestart IOError = 2
)

// IOCmdRestartRead asks an IoctlFunc to rewind the upload source.
const IOCmdRestartRead = 1

const (
	SockOptOK               = 0
	SockOptError            = 1
	SockOptAlreadyConnected = 2
)

// SockType is the purpose of a socket handed to socket callbacks.
type SockType int

const (
	SockTypeIPCXN  SockType = 0
	SockTypeAccept SockType = 1
)

// SockAddr is the address an OpenSocketFunc should connect to.
type SockAddr struct {
	Network string
	Address string
}

const (
	ChunkBgnFuncOK   = 0
	ChunkBgnFuncFail = 1
	ChunkBgnFuncSkip = 2

	ChunkEndFuncOK   = 0
	ChunkEndFuncFail = 1
)

const (
	FnMatchFuncMatch   = 0
	FnMatchFuncNoMatch = 1
	FnMatchFuncFail    = 2
)

// DebugType classifies data handed to a DebugFunc.
type DebugType int

const (
	DebugText       DebugType = 0
	DebugHeaderIn   DebugType = 1
	DebugHeaderOut  DebugType = 2
	DebugDataIn     DebugType = 3
	DebugDataOut    DebugType = 4
	DebugSSLDataIn  DebugType = 5
	DebugSSLDataOut DebugType = 6
)

func (t DebugType) String() string {
	switch t {
	case DebugText:
		return "text"
	case DebugHeaderIn:
		return "header-in"
	case DebugHeaderOut:
		return "header-out"
	case DebugDataIn:
		return "data-in"
	case DebugDataOut:
		return "data-out"
	case DebugSSLDataIn:
		return "ssl-data-in"
	case DebugSSLDataOut:
		return "ssl-data-out"
	}
	return "unknown"
}

// FileType is the kind of a remote entry in a wildcard transfer.
type FileType int

const (
	FileTypeFile FileType = iota
	FileTypeDirectory
	FileTypeSymlink
	FileTypeUnknown
)

// FileInfo describes the remote entry passed to a ChunkBgnFunc.
type FileInfo struct {
	Filename string
	FileType FileType
	Time     time.Time
	Size     Off
	Target   string
}
