package easy

import (
	"crypto/tls"
	"net"

	"github.com/adamwoolhether/xfer/native"
)

// Handler signatures. Each receives the data value it was registered with.
type (
	// ReadHandler fills buf with upload data and returns the count written,
	// 0 at end of data, or native.ReadFuncAbort / native.ReadFuncPause.
	ReadHandler func(buf []byte, data any) int

	// WriteHandler consumes downloaded bytes or one header line and returns
	// len(p) to continue.
	WriteHandler func(p []byte, data any) int

	ProgressHandler func(dlTotal, dlNow, ulTotal, ulNow float64, data any) int
	XferInfoHandler func(dlTotal, dlNow, ulTotal, ulNow native.Off, data any) int
	DebugHandler    func(typ native.DebugType, p []byte, data any) int

	SeekHandler  func(offset native.Off, origin int, data any) int
	IoctlHandler func(cmd int, data any) native.IOError

	SockOptHandler     func(conn net.Conn, purpose native.SockType, data any) int
	OpenSocketHandler  func(purpose native.SockType, addr *native.SockAddr, data any) net.Conn
	CloseSocketHandler func(conn net.Conn, data any) int
	SSLCtxHandler      func(cfg *tls.Config, data any) native.Code

	ChunkBgnHandler func(info *native.FileInfo, remains int, data any) int
	ChunkEndHandler func(data any) int
	FnMatchHandler  func(pattern, str string, data any) int
)

// event is one registered callback slot.
type event[H any] struct {
	handler H
	data    any
	ok      bool
}

func (ev *event[H]) set(h H, data any, ok bool) {
	if !ok {
		*ev = event[H]{}
		return
	}
	*ev = event[H]{handler: h, data: data, ok: true}
}

// state is installed as the engine's userdata for every callback. It lives
// apart from the Easy so that moving a handle keeps callbacks intact.
type state struct {
	read     event[ReadHandler]
	write    event[WriteHandler]
	header   event[WriteHandler]
	progress event[ProgressHandler]
	xferInfo event[XferInfoHandler]
	debug    event[DebugHandler]

	seek  event[SeekHandler]
	ioctl event[IoctlHandler]

	sockOpt     event[SockOptHandler]
	openSocket  event[OpenSocketHandler]
	closeSocket event[CloseSocketHandler]
	sslCtx      event[SSLCtxHandler]

	chunkBgn event[ChunkBgnHandler]
	chunkEnd event[ChunkEndHandler]
	fnMatch  event[FnMatchHandler]
}

func stateOf(userdata any) *state {
	st, _ := userdata.(*state)
	return st
}

func readTrampoline(buf []byte, size, n int, userdata any) int {
	st := stateOf(userdata)
	if st == nil || !st.read.ok {
		return native.ReadFuncAbort
	}
	return st.read.handler(buf[:size*n], st.read.data)
}

func writeTrampoline(p []byte, size, n int, userdata any) int {
	st := stateOf(userdata)
	if st == nil || !st.write.ok {
		return 0
	}
	return st.write.handler(p[:size*n], st.write.data)
}

func headerTrampoline(p []byte, size, n int, userdata any) int {
	st := stateOf(userdata)
	if st == nil || !st.header.ok {
		return 0
	}
	return st.header.handler(p[:size*n], st.header.data)
}

func progressTrampoline(clientp any, dlTotal, dlNow, ulTotal, ulNow float64) int {
	st := stateOf(clientp)
	if st == nil || !st.progress.ok {
		return 1
	}
	return st.progress.handler(dlTotal, dlNow, ulTotal, ulNow, st.progress.data)
}

func xferInfoTrampoline(clientp any, dlTotal, dlNow, ulTotal, ulNow native.Off) int {
	st := stateOf(clientp)
	if st == nil || !st.xferInfo.ok {
		return 1
	}
	return st.xferInfo.handler(dlTotal, dlNow, ulTotal, ulNow, st.xferInfo.data)
}

func debugTrampoline(_ *native.Session, typ native.DebugType, p []byte, userp any) int {
	st := stateOf(userp)
	if st == nil || !st.debug.ok {
		return 0
	}
	return st.debug.handler(typ, p, st.debug.data)
}

func seekTrampoline(userp any, offset native.Off, origin int) int {
	st := stateOf(userp)
	if st == nil || !st.seek.ok {
		return native.SeekFuncFail
	}
	return st.seek.handler(offset, origin, st.seek.data)
}

func ioctlTrampoline(_ *native.Session, cmd int, clientp any) native.IOError {
	st := stateOf(clientp)
	if st == nil || !st.ioctl.ok {
		return native.IOEUnknownCmd
	}
	return st.ioctl.handler(cmd, st.ioctl.data)
}

func sockOptTrampoline(clientp any, conn net.Conn, purpose native.SockType) int {
	st := stateOf(clientp)
	if st == nil || !st.sockOpt.ok {
		return native.SockOptError
	}
	return st.sockOpt.handler(conn, purpose, st.sockOpt.data)
}

func openSocketTrampoline(clientp any, purpose native.SockType, addr *native.SockAddr) net.Conn {
	st := stateOf(clientp)
	if st == nil || !st.openSocket.ok {
		return nil
	}
	return st.openSocket.handler(purpose, addr, st.openSocket.data)
}

func closeSocketTrampoline(clientp any, conn net.Conn) int {
	st := stateOf(clientp)
	if st == nil || !st.closeSocket.ok {
		return 1
	}
	return st.closeSocket.handler(conn, st.closeSocket.data)
}

func sslCtxTrampoline(_ *native.Session, cfg *tls.Config, userp any) native.Code {
	st := stateOf(userp)
	if st == nil || !st.sslCtx.ok {
		return native.AbortedByCallback
	}
	return st.sslCtx.handler(cfg, st.sslCtx.data)
}

func chunkBgnTrampoline(info *native.FileInfo, ptr any, remains int) int {
	st := stateOf(ptr)
	if st == nil || !st.chunkBgn.ok {
		return native.ChunkBgnFuncFail
	}
	return st.chunkBgn.handler(info, remains, st.chunkBgn.data)
}

func chunkEndTrampoline(ptr any) int {
	st := stateOf(ptr)
	if st == nil || !st.chunkEnd.ok {
		return native.ChunkEndFuncFail
	}
	return st.chunkEnd.handler(st.chunkEnd.data)
}

func fnMatchTrampoline(ptr any, pattern, str string) int {
	st := stateOf(ptr)
	if st == nil || !st.fnMatch.ok {
		return native.FnMatchFuncFail
	}
	return st.fnMatch.handler(pattern, str, st.fnMatch.data)
}
