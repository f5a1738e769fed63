package native

import (
	"fmt"
	"io"
	"reflect"
)

// Option identifies a session setting. The identifier encodes the
// category of value the option expects, see Option.Type.
type Option int

// OptionType is the coarse value category an Option accepts.
type OptionType int

const (
	TypeLong          OptionType = 0
	TypeObjectPoint   OptionType = 10000
	TypeFunctionPoint OptionType = 20000
	TypeOffT          OptionType = 30000

	typeInterval = int(TypeObjectPoint - TypeLong)
)

// Type extracts the category tag encoded in o.
func (o Option) Type() OptionType {
	return OptionType(int(o) / typeInterval * typeInterval)
}

func (t OptionType) String() string {
	switch t {
	case TypeLong:
		return "long"
	case TypeObjectPoint:
		return "object pointer"
	case TypeFunctionPoint:
		return "function pointer"
	case TypeOffT:
		return "off_t"
	}
	return fmt.Sprintf("OptionType(%d)", int(t))
}

// Off is a large file offset or size. Values of this type are the only ones
// accepted by TypeOffT options.
type Off int64

// Long options.
const (
	OptPort                 = Option(int(TypeLong) + 3)
	OptTimeout              = Option(int(TypeLong) + 13)
	OptInFileSize           = Option(int(TypeLong) + 14)
	OptLowSpeedLimit        = Option(int(TypeLong) + 19)
	OptLowSpeedTime         = Option(int(TypeLong) + 20)
	OptResumeFrom           = Option(int(TypeLong) + 21)
	OptSSLVersion           = Option(int(TypeLong) + 32)
	OptTimeCondition        = Option(int(TypeLong) + 33)
	OptTimeValue            = Option(int(TypeLong) + 34)
	OptVerbose              = Option(int(TypeLong) + 41)
	OptHeader               = Option(int(TypeLong) + 42)
	OptNoProgress           = Option(int(TypeLong) + 43)
	OptNoBody               = Option(int(TypeLong) + 44)
	OptFailOnError          = Option(int(TypeLong) + 45)
	OptUpload               = Option(int(TypeLong) + 46)
	OptPost                 = Option(int(TypeLong) + 47)
	OptDirListOnly          = Option(int(TypeLong) + 48)
	OptAppend               = Option(int(TypeLong) + 50)
	OptFollowLocation       = Option(int(TypeLong) + 52)
	OptAutoReferer          = Option(int(TypeLong) + 58)
	OptPostFieldSize        = Option(int(TypeLong) + 60)
	OptSSLVerifyPeer        = Option(int(TypeLong) + 64)
	OptMaxRedirs            = Option(int(TypeLong) + 68)
	OptFileTime             = Option(int(TypeLong) + 69)
	OptMaxConnects          = Option(int(TypeLong) + 71)
	OptFreshConnect         = Option(int(TypeLong) + 74)
	OptForbidReuse          = Option(int(TypeLong) + 75)
	OptConnectTimeout       = Option(int(TypeLong) + 78)
	OptHTTPGet              = Option(int(TypeLong) + 80)
	OptSSLVerifyHost        = Option(int(TypeLong) + 81)
	OptHTTPVersion          = Option(int(TypeLong) + 84)
	OptFTPUseEPSV           = Option(int(TypeLong) + 85)
	OptBufferSize           = Option(int(TypeLong) + 98)
	OptNoSignal             = Option(int(TypeLong) + 99)
	OptUnrestrictedAuth     = Option(int(TypeLong) + 105)
	OptHTTPAuth             = Option(int(TypeLong) + 107)
	OptFTPCreateMissingDirs = Option(int(TypeLong) + 110)
	OptIPResolve            = Option(int(TypeLong) + 113)
	OptMaxFileSize          = Option(int(TypeLong) + 114)
	OptUseSSL               = Option(int(TypeLong) + 119)
	OptTCPNoDelay           = Option(int(TypeLong) + 121)
	OptIgnoreContentLength  = Option(int(TypeLong) + 136)
	OptConnectOnly          = Option(int(TypeLong) + 141)
	OptTimeoutMS            = Option(int(TypeLong) + 155)
	OptConnectTimeoutMS     = Option(int(TypeLong) + 156)
	OptHTTPTransferDecoding = Option(int(TypeLong) + 157)
	OptHTTPContentDecoding  = Option(int(TypeLong) + 158)
	OptPostRedir            = Option(int(TypeLong) + 161)
	OptWildcardMatch        = Option(int(TypeLong) + 197)
	OptTCPKeepAlive         = Option(int(TypeLong) + 213)
	OptExpect100TimeoutMS   = Option(int(TypeLong) + 227)
)

// Object pointer options.
const (
	OptWriteData         = Option(int(TypeObjectPoint) + 1)
	OptURL               = Option(int(TypeObjectPoint) + 2)
	OptProxy             = Option(int(TypeObjectPoint) + 4)
	OptUserPwd           = Option(int(TypeObjectPoint) + 5)
	OptProxyUserPwd      = Option(int(TypeObjectPoint) + 6)
	OptRange             = Option(int(TypeObjectPoint) + 7)
	OptReadData          = Option(int(TypeObjectPoint) + 9)
	OptErrorBuffer       = Option(int(TypeObjectPoint) + 10)
	OptPostFields        = Option(int(TypeObjectPoint) + 15)
	OptReferer           = Option(int(TypeObjectPoint) + 16)
	OptUserAgent         = Option(int(TypeObjectPoint) + 18)
	OptCookie            = Option(int(TypeObjectPoint) + 22)
	OptHTTPHeader        = Option(int(TypeObjectPoint) + 23)
	OptHTTPPost          = Option(int(TypeObjectPoint) + 24)
	OptSSLCert           = Option(int(TypeObjectPoint) + 25)
	OptHeaderData        = Option(int(TypeObjectPoint) + 29)
	OptCookieFile        = Option(int(TypeObjectPoint) + 31)
	OptCustomRequest     = Option(int(TypeObjectPoint) + 36)
	OptStderr            = Option(int(TypeObjectPoint) + 37)
	OptProgressData      = Option(int(TypeObjectPoint) + 57)
	OptXferInfoData      = OptProgressData
	OptCAInfo            = Option(int(TypeObjectPoint) + 65)
	OptCookieJar         = Option(int(TypeObjectPoint) + 82)
	OptSSLKey            = Option(int(TypeObjectPoint) + 87)
	OptDebugData         = Option(int(TypeObjectPoint) + 95)
	OptAcceptEncoding    = Option(int(TypeObjectPoint) + 102)
	OptSSLCtxData        = Option(int(TypeObjectPoint) + 109)
	OptIoctlData         = Option(int(TypeObjectPoint) + 131)
	OptSockOptData       = Option(int(TypeObjectPoint) + 149)
	OptOpenSocketData    = Option(int(TypeObjectPoint) + 164)
	OptSeekData          = Option(int(TypeObjectPoint) + 168)
	OptUsername          = Option(int(TypeObjectPoint) + 173)
	OptPassword          = Option(int(TypeObjectPoint) + 174)
	OptNoProxy           = Option(int(TypeObjectPoint) + 177)
	OptChunkData         = Option(int(TypeObjectPoint) + 201)
	OptFnMatchData       = Option(int(TypeObjectPoint) + 202)
	OptResolve           = Option(int(TypeObjectPoint) + 203)
	OptCloseSocketData   = Option(int(TypeObjectPoint) + 209)
	OptXOAuth2Bearer     = Option(int(TypeObjectPoint) + 220)
	OptUnixSocketPath    = Option(int(TypeObjectPoint) + 231)
	OptDefaultProtocol   = Option(int(TypeObjectPoint) + 238)
	OptAWSSigV4          = Option(int(TypeObjectPoint) + 305)
	OptProtocolsStr      = Option(int(TypeObjectPoint) + 318)
	OptRedirProtocolsStr = Option(int(TypeObjectPoint) + 319)
)

// Function pointer options.
const (
	OptWriteFunction       = Option(int(TypeFunctionPoint) + 11)
	OptReadFunction        = Option(int(TypeFunctionPoint) + 12)
	OptProgressFunction    = Option(int(TypeFunctionPoint) + 56)
	OptHeaderFunction      = Option(int(TypeFunctionPoint) + 79)
	OptDebugFunction       = Option(int(TypeFunctionPoint) + 94)
	OptSSLCtxFunction      = Option(int(TypeFunctionPoint) + 108)
	OptIoctlFunction       = Option(int(TypeFunctionPoint) + 130)
	OptSockOptFunction     = Option(int(TypeFunctionPoint) + 148)
	OptOpenSocketFunction  = Option(int(TypeFunctionPoint) + 163)
	OptSeekFunction        = Option(int(TypeFunctionPoint) + 167)
	OptChunkBgnFunction    = Option(int(TypeFunctionPoint) + 198)
	OptChunkEndFunction    = Option(int(TypeFunctionPoint) + 199)
	OptFnMatchFunction     = Option(int(TypeFunctionPoint) + 200)
	OptCloseSocketFunction = Option(int(TypeFunctionPoint) + 208)
	OptXferInfoFunction    = Option(int(TypeFunctionPoint) + 219)
)

// Large integer options.
const (
	OptInFileSizeLarge    = Option(int(TypeOffT) + 115)
	OptResumeFromLarge    = Option(int(TypeOffT) + 116)
	OptMaxFileSizeLarge   = Option(int(TypeOffT) + 117)
	OptPostFieldSizeLarge = Option(int(TypeOffT) + 120)
	OptMaxSendSpeedLarge  = Option(int(TypeOffT) + 145)
	OptMaxRecvSpeedLarge  = Option(int(TypeOffT) + 146)
	OptTimeValueLarge     = Option(int(TypeOffT) + 270)
)

// Values for OptHTTPVersion.
const (
	HTTPVersionNone            = 0
	HTTPVersion1_0             = 1
	HTTPVersion1_1             = 2
	HTTPVersion2_0             = 3
	HTTPVersion2TLS            = 4
	HTTPVersion2PriorKnowledge = 5
	HTTPVersion3               = 30
	HTTPVersion3Only           = 31
)

// Bits for OptHTTPAuth.
const (
	AuthNone   = 0
	AuthBasic  = 1 << 0
	AuthDigest = 1 << 1
	AuthBearer = 1 << 6
	AuthAny    = AuthBasic | AuthDigest | AuthBearer
)

// Values for OptTimeCondition.
const (
	TimeCondNone         = 0
	TimeCondIfModSince   = 1
	TimeCondIfUnmodSince = 2
)

// Values for OptIPResolve.
const (
	IPResolveWhatever = 0
	IPResolveV4       = 1
	IPResolveV6       = 2
)

// Values for OptUseSSL.
const (
	UseSSLNone    = 0
	UseSSLTry     = 1
	UseSSLControl = 2
	UseSSLAll     = 3
)

// Values for OptSSLVersion.
const (
	SSLVersionDefault = 0
	SSLVersionTLSv1   = 1
	SSLVersionTLSv1_0 = 4
	SSLVersionTLSv1_1 = 5
	SSLVersionTLSv1_2 = 6
	SSLVersionTLSv1_3 = 7
)

// Bits for OptPostRedir.
const (
	Redirect301 = 1 << 0
	Redirect302 = 1 << 1
	Redirect303 = 1 << 2
)

// Pause bitmask values.
const (
	PauseRecv = 1 << 0
	PauseSend = 1 << 2
	PauseAll  = PauseRecv | PauseSend
	PauseCont = 0
)

// storeFn validates a value for a specific option and returns what is kept
// in the session.
type storeFn func(v any) (any, bool)

func longValue(v any) (any, bool) {
	n, ok := v.(int64)
	return n, ok
}

func offValue(v any) (any, bool) {
	n, ok := v.(Off)
	return n, ok
}

func stringValue(v any) (any, bool) {
	s, ok := v.(string)
	return s, ok
}

func opaqueValue(v any) (any, bool) { return v, true }

func typedValue[T any](v any) (any, bool) {
	t, ok := v.(T)
	if !ok {
		return nil, false
	}
	if isNil(t) {
		return nil, true
	}
	return t, true
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Func, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

type optionSpec struct {
	name  string
	store storeFn
}

var options = map[Option]optionSpec{
	OptPort:                 {"PORT", longValue},
	OptTimeout:              {"TIMEOUT", longValue},
	OptInFileSize:           {"INFILESIZE", longValue},
	OptLowSpeedLimit:        {"LOW_SPEED_LIMIT", longValue},
	OptLowSpeedTime:         {"LOW_SPEED_TIME", longValue},
	OptResumeFrom:           {"RESUME_FROM", longValue},
	OptSSLVersion:           {"SSLVERSION", longValue},
	OptTimeCondition:        {"TIMECONDITION", longValue},
	OptTimeValue:            {"TIMEVALUE", longValue},
	OptVerbose:              {"VERBOSE", longValue},
	OptHeader:               {"HEADER", longValue},
	OptNoProgress:           {"NOPROGRESS", longValue},
	OptNoBody:               {"NOBODY", longValue},
	OptFailOnError:          {"FAILONERROR", longValue},
	OptUpload:               {"UPLOAD", longValue},
	OptPost:                 {"POST", longValue},
	OptDirListOnly:          {"DIRLISTONLY", longValue},
	OptAppend:               {"APPEND", longValue},
	OptFollowLocation:       {"FOLLOWLOCATION", longValue},
	OptAutoReferer:          {"AUTOREFERER", longValue},
	OptPostFieldSize:        {"POSTFIELDSIZE", longValue},
	OptSSLVerifyPeer:        {"SSL_VERIFYPEER", longValue},
	OptMaxRedirs:            {"MAXREDIRS", longValue},
	OptFileTime:             {"FILETIME", longValue},
	OptMaxConnects:          {"MAXCONNECTS", longValue},
	OptFreshConnect:         {"FRESH_CONNECT", longValue},
	OptForbidReuse:          {"FORBID_REUSE", longValue},
	OptConnectTimeout:       {"CONNECTTIMEOUT", longValue},
	OptHTTPGet:              {"HTTPGET", longValue},
	OptSSLVerifyHost:        {"SSL_VERIFYHOST", longValue},
	OptHTTPVersion:          {"HTTP_VERSION", longValue},
	OptFTPUseEPSV:           {"FTP_USE_EPSV", longValue},
	OptBufferSize:           {"BUFFERSIZE", longValue},
	OptNoSignal:             {"NOSIGNAL", longValue},
	OptUnrestrictedAuth:     {"UNRESTRICTED_AUTH", longValue},
	OptHTTPAuth:             {"HTTPAUTH", longValue},
	OptFTPCreateMissingDirs: {"FTP_CREATE_MISSING_DIRS", longValue},
	OptIPResolve:            {"IPRESOLVE", longValue},
	OptMaxFileSize:          {"MAXFILESIZE", longValue},
	OptUseSSL:               {"USE_SSL", longValue},
	OptTCPNoDelay:           {"TCP_NODELAY", longValue},
	OptIgnoreContentLength:  {"IGNORE_CONTENT_LENGTH", longValue},
	OptConnectOnly:          {"CONNECT_ONLY", longValue},
	OptTimeoutMS:            {"TIMEOUT_MS", longValue},
	OptConnectTimeoutMS:     {"CONNECTTIMEOUT_MS", longValue},
	OptHTTPTransferDecoding: {"HTTP_TRANSFER_DECODING", longValue},
	OptHTTPContentDecoding:  {"HTTP_CONTENT_DECODING", longValue},
	OptPostRedir:            {"POSTREDIR", longValue},
	OptWildcardMatch:        {"WILDCARDMATCH", longValue},
	OptTCPKeepAlive:         {"TCP_KEEPALIVE", longValue},
	OptExpect100TimeoutMS:   {"EXPECT_100_TIMEOUT_MS", longValue},

	OptWriteData:         {"WRITEDATA", opaqueValue},
	OptURL:               {"URL", stringValue},
	OptProxy:             {"PROXY", stringValue},
	OptUserPwd:           {"USERPWD", stringValue},
	OptProxyUserPwd:      {"PROXYUSERPWD", stringValue},
	OptRange:             {"RANGE", stringValue},
	OptReadData:          {"READDATA", opaqueValue},
	OptErrorBuffer:       {"ERRORBUFFER", typedValue[*string]},
	OptPostFields:        {"POSTFIELDS", stringValue},
	OptReferer:           {"REFERER", stringValue},
	OptUserAgent:         {"USERAGENT", stringValue},
	OptCookie:            {"COOKIE", stringValue},
	OptHTTPHeader:        {"HTTPHEADER", typedValue[*SList]},
	OptHTTPPost:          {"HTTPPOST", typedValue[*HTTPPost]},
	OptSSLCert:           {"SSLCERT", stringValue},
	OptHeaderData:        {"HEADERDATA", opaqueValue},
	OptCookieFile:        {"COOKIEFILE", stringValue},
	OptCustomRequest:     {"CUSTOMREQUEST", stringValue},
	OptStderr:            {"STDERR", typedValue[io.Writer]},
	OptProgressData:      {"PROGRESSDATA", opaqueValue},
	OptCAInfo:            {"CAINFO", stringValue},
	OptCookieJar:         {"COOKIEJAR", stringValue},
	OptSSLKey:            {"SSLKEY", stringValue},
	OptDebugData:         {"DEBUGDATA", opaqueValue},
	OptAcceptEncoding:    {"ACCEPT_ENCODING", stringValue},
	OptSSLCtxData:        {"SSL_CTX_DATA", opaqueValue},
	OptIoctlData:         {"IOCTLDATA", opaqueValue},
	OptSockOptData:       {"SOCKOPTDATA", opaqueValue},
	OptOpenSocketData:    {"OPENSOCKETDATA", opaqueValue},
	OptSeekData:          {"SEEKDATA", opaqueValue},
	OptUsername:          {"USERNAME", stringValue},
	OptPassword:          {"PASSWORD", stringValue},
	OptNoProxy:           {"NOPROXY", stringValue},
	OptChunkData:         {"CHUNK_DATA", opaqueValue},
	OptFnMatchData:       {"FNMATCH_DATA", opaqueValue},
	OptResolve:           {"RESOLVE", typedValue[*SList]},
	OptCloseSocketData:   {"CLOSESOCKETDATA", opaqueValue},
	OptXOAuth2Bearer:     {"XOAUTH2_BEARER", stringValue},
	OptUnixSocketPath:    {"UNIX_SOCKET_PATH", stringValue},
	OptDefaultProtocol:   {"DEFAULT_PROTOCOL", stringValue},
	OptAWSSigV4:          {"AWS_SIGV4", stringValue},
	OptProtocolsStr:      {"PROTOCOLS_STR", stringValue},
	OptRedirProtocolsStr: {"REDIR_PROTOCOLS_STR", stringValue},

	OptWriteFunction:       {"WRITEFUNCTION", typedValue[WriteFunc]},
	OptReadFunction:        {"READFUNCTION", typedValue[ReadFunc]},
	OptProgressFunction:    {"PROGRESSFUNCTION", typedValue[ProgressFunc]},
	OptHeaderFunction:      {"HEADERFUNCTION", typedValue[WriteFunc]},
	OptDebugFunction:       {"DEBUGFUNCTION", typedValue[DebugFunc]},
	OptSSLCtxFunction:      {"SSL_CTX_FUNCTION", typedValue[SSLCtxFunc]},
	OptIoctlFunction:       {"IOCTLFUNCTION", typedValue[IoctlFunc]},
	OptSockOptFunction:     {"SOCKOPTFUNCTION", typedValue[SockOptFunc]},
	OptOpenSocketFunction:  {"OPENSOCKETFUNCTION", typedValue[OpenSocketFunc]},
	OptSeekFunction:        {"SEEKFUNCTION", typedValue[SeekFunc]},
	OptChunkBgnFunction:    {"CHUNK_BGN_FUNCTION", typedValue[ChunkBgnFunc]},
	OptChunkEndFunction:    {"CHUNK_END_FUNCTION", typedValue[ChunkEndFunc]},
	OptFnMatchFunction:     {"FNMATCH_FUNCTION", typedValue[FnMatchFunc]},
	OptCloseSocketFunction: {"CLOSESOCKETFUNCTION", typedValue[CloseSocketFunc]},
	OptXferInfoFunction:    {"XFERINFOFUNCTION", typedValue[XferInfoFunc]},

	OptInFileSizeLarge:    {"INFILESIZE_LARGE", offValue},
	OptResumeFromLarge:    {"RESUME_FROM_LARGE", offValue},
	OptMaxFileSizeLarge:   {"MAXFILESIZE_LARGE", offValue},
	OptPostFieldSizeLarge: {"POSTFIELDSIZE_LARGE", offValue},
	OptMaxSendSpeedLarge:  {"MAX_SEND_SPEED_LARGE", offValue},
	OptMaxRecvSpeedLarge:  {"MAX_RECV_SPEED_LARGE", offValue},
	OptTimeValueLarge:     {"TIMEVALUE_LARGE", offValue},
}

func (o Option) String() string {
	if spec, ok := options[o]; ok {
		return spec.name
	}
	return fmt.Sprintf("Option(%d)", int(o))
}

// Known reports whether o is an option the engine understands.
func (o Option) Known() bool {
	_, ok := options[o]
	return ok
}

// defaults holds the values an option reports before it is set or after
// Reset. Options absent here default to zero, "" or nil.
var defaults = map[Option]any{
	OptNoProgress:           int64(1),
	OptSSLVerifyPeer:        int64(1),
	OptSSLVerifyHost:        int64(2),
	OptTCPNoDelay:           int64(1),
	OptMaxRedirs:            int64(30),
	OptInFileSize:           int64(-1),
	OptPostFieldSize:        int64(-1),
	OptFTPUseEPSV:           int64(1),
	OptBufferSize:           int64(16 << 10),
	OptHTTPAuth:             int64(AuthBasic),
	OptHTTPContentDecoding:  int64(1),
	OptHTTPTransferDecoding: int64(1),
	OptExpect100TimeoutMS:   int64(1000),
	OptConnectTimeout:       int64(300),
	OptInFileSizeLarge:      Off(-1),
	OptPostFieldSizeLarge:   Off(-1),
}
