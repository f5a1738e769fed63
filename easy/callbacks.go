package easy

import (
	"github.com/adamwoolhether/xfer/native"
)

// install points fnOpt at a trampoline and dataOpt at the handle's state,
// or clears both. shared keeps dataOpt set when a sibling callback still
// reads it.
func (e *Easy) install(fnOpt native.Option, fn any, dataOpt native.Option, on, shared bool) error {
	var data any
	if on || shared {
		data = e.st
	}
	if !on {
		fn = nil
	}

	if err := e.Set(fnOpt, fn); err != nil || !e.OK() {
		return err
	}
	return e.Set(dataOpt, data)
}

func (e *Easy) toggle(opt native.Option, on bool) error {
	var v int64
	if on {
		v = 1
	}
	return e.Set(opt, v)
}

// OnRead registers the upload source. A nil handler clears it.
func (e *Easy) OnRead(h ReadHandler, data any) error {
	if e.st == nil {
		return e.emptyErr("read")
	}
	e.st.read.set(h, data, h != nil)
	return e.install(native.OptReadFunction, native.ReadFunc(readTrampoline), native.OptReadData, h != nil, false)
}

// OnWrite registers the receiver of downloaded data.
func (e *Easy) OnWrite(h WriteHandler, data any) error {
	if e.st == nil {
		return e.emptyErr("write")
	}
	e.st.write.set(h, data, h != nil)
	return e.install(native.OptWriteFunction, native.WriteFunc(writeTrampoline), native.OptWriteData, h != nil, false)
}

// OnHeader registers the receiver of response header lines.
func (e *Easy) OnHeader(h WriteHandler, data any) error {
	if e.st == nil {
		return e.emptyErr("header")
	}
	e.st.header.set(h, data, h != nil)
	return e.install(native.OptHeaderFunction, native.WriteFunc(headerTrampoline), native.OptHeaderData, h != nil, false)
}

// OnProgress registers a progress meter and turns progress reporting on.
// Clearing it turns reporting off unless an xferinfo handler remains.
func (e *Easy) OnProgress(h ProgressHandler, data any) error {
	if e.st == nil {
		return e.emptyErr("progress")
	}
	e.st.progress.set(h, data, h != nil)
	if err := e.install(native.OptProgressFunction, native.ProgressFunc(progressTrampoline), native.OptProgressData, h != nil, e.st.xferInfo.ok); err != nil || !e.OK() {
		return err
	}
	return e.toggle(native.OptNoProgress, !e.st.progress.ok && !e.st.xferInfo.ok)
}

// OnXferInfo is OnProgress with integer counters.
func (e *Easy) OnXferInfo(h XferInfoHandler, data any) error {
	if e.st == nil {
		return e.emptyErr("xferinfo")
	}
	e.st.xferInfo.set(h, data, h != nil)
	if err := e.install(native.OptXferInfoFunction, native.XferInfoFunc(xferInfoTrampoline), native.OptXferInfoData, h != nil, e.st.progress.ok); err != nil || !e.OK() {
		return err
	}
	return e.toggle(native.OptNoProgress, !e.st.progress.ok && !e.st.xferInfo.ok)
}

// OnDebug registers a trace receiver and turns verbose mode on; clearing
// it turns verbose mode off.
func (e *Easy) OnDebug(h DebugHandler, data any) error {
	if e.st == nil {
		return e.emptyErr("debug")
	}
	e.st.debug.set(h, data, h != nil)
	if err := e.install(native.OptDebugFunction, native.DebugFunc(debugTrampoline), native.OptDebugData, h != nil, false); err != nil || !e.OK() {
		return err
	}
	return e.toggle(native.OptVerbose, h != nil)
}

// OnSeek registers the upload rewind hook.
func (e *Easy) OnSeek(h SeekHandler, data any) error {
	if e.st == nil {
		return e.emptyErr("seek")
	}
	e.st.seek.set(h, data, h != nil)
	return e.install(native.OptSeekFunction, native.SeekFunc(seekTrampoline), native.OptSeekData, h != nil, false)
}

// OnIoctl registers the legacy rewind hook.
func (e *Easy) OnIoctl(h IoctlHandler, data any) error {
	if e.st == nil {
		return e.emptyErr("ioctl")
	}
	e.st.ioctl.set(h, data, h != nil)
	return e.install(native.OptIoctlFunction, native.IoctlFunc(ioctlTrampoline), native.OptIoctlData, h != nil, false)
}

// OnSockOpt registers a hook run on each new connection.
func (e *Easy) OnSockOpt(h SockOptHandler, data any) error {
	if e.st == nil {
		return e.emptyErr("sockopt")
	}
	e.st.sockOpt.set(h, data, h != nil)
	return e.install(native.OptSockOptFunction, native.SockOptFunc(sockOptTrampoline), native.OptSockOptData, h != nil, false)
}

// OnOpenSocket replaces the engine's dialer.
func (e *Easy) OnOpenSocket(h OpenSocketHandler, data any) error {
	if e.st == nil {
		return e.emptyErr("opensocket")
	}
	e.st.openSocket.set(h, data, h != nil)
	return e.install(native.OptOpenSocketFunction, native.OpenSocketFunc(openSocketTrampoline), native.OptOpenSocketData, h != nil, false)
}

// OnCloseSocket replaces closing of connections opened by OnOpenSocket.
func (e *Easy) OnCloseSocket(h CloseSocketHandler, data any) error {
	if e.st == nil {
		return e.emptyErr("closesocket")
	}
	e.st.closeSocket.set(h, data, h != nil)
	return e.install(native.OptCloseSocketFunction, native.CloseSocketFunc(closeSocketTrampoline), native.OptCloseSocketData, h != nil, false)
}

// OnSSLCtx lets h adjust the TLS configuration before each handshake.
func (e *Easy) OnSSLCtx(h SSLCtxHandler, data any) error {
	if e.st == nil {
		return e.emptyErr("sslctx")
	}
	e.st.sslCtx.set(h, data, h != nil)
	return e.install(native.OptSSLCtxFunction, native.SSLCtxFunc(sslCtxTrampoline), native.OptSSLCtxData, h != nil, false)
}

// OnChunkBgn is called before each file of a wildcard transfer.
func (e *Easy) OnChunkBgn(h ChunkBgnHandler, data any) error {
	if e.st == nil {
		return e.emptyErr("chunkbgn")
	}
	e.st.chunkBgn.set(h, data, h != nil)
	return e.install(native.OptChunkBgnFunction, native.ChunkBgnFunc(chunkBgnTrampoline), native.OptChunkData, h != nil, e.st.chunkEnd.ok)
}

// OnChunkEnd is called after each file of a wildcard transfer.
func (e *Easy) OnChunkEnd(h ChunkEndHandler, data any) error {
	if e.st == nil {
		return e.emptyErr("chunkend")
	}
	e.st.chunkEnd.set(h, data, h != nil)
	return e.install(native.OptChunkEndFunction, native.ChunkEndFunc(chunkEndTrampoline), native.OptChunkData, h != nil, e.st.chunkBgn.ok)
}

// OnFnMatch overrides the wildcard matcher.
func (e *Easy) OnFnMatch(h FnMatchHandler, data any) error {
	if e.st == nil {
		return e.emptyErr("fnmatch")
	}
	e.st.fnMatch.set(h, data, h != nil)
	return e.install(native.OptFnMatchFunction, native.FnMatchFunc(fnMatchTrampoline), native.OptFnMatchData, h != nil, false)
}

// OnReadSimple registers fn as the upload source. fn fills the whole buffer
// and reports success; false aborts the transfer.
func (e *Easy) OnReadSimple(fn func(buf []byte) bool) error {
	if fn == nil {
		return e.OnRead(nil, nil)
	}
	return e.OnRead(func(buf []byte, _ any) int {
		if !fn(buf) {
			return native.ReadFuncAbort
		}
		return len(buf)
	}, nil)
}

// OnWriteSimple registers fn as the data receiver; false aborts the
// transfer.
func (e *Easy) OnWriteSimple(fn func(p []byte) bool) error {
	if fn == nil {
		return e.OnWrite(nil, nil)
	}
	return e.OnWrite(simpleWrite(fn), nil)
}

// OnHeaderSimple registers fn as the header receiver; false aborts the
// transfer.
func (e *Easy) OnHeaderSimple(fn func(line []byte) bool) error {
	if fn == nil {
		return e.OnHeader(nil, nil)
	}
	return e.OnHeader(simpleWrite(fn), nil)
}

// OnProgressSimple installs fn as an xferinfo handler; false aborts the
// transfer.
func (e *Easy) OnProgressSimple(fn func(dlTotal, dlNow, ulTotal, ulNow native.Off) bool) error {
	if fn == nil {
		return e.OnXferInfo(nil, nil)
	}
	return e.OnXferInfo(func(dlTotal, dlNow, ulTotal, ulNow native.Off, _ any) int {
		if fn(dlTotal, dlNow, ulTotal, ulNow) {
			return 0
		}
		return 1
	}, nil)
}

func simpleWrite(fn func([]byte) bool) WriteHandler {
	return func(p []byte, _ any) int {
		if !fn(p) {
			return 0
		}
		return len(p)
	}
}
