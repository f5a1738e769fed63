package native

import "fmt"

// Info identifies a piece of transfer information read with Getinfo. The
// key's high bits carry the type of the value it reports.
type Info int

// InfoType is the value type encoded in an Info key.
type InfoType int

const (
	InfoString InfoType = 0x100000
	InfoLong   InfoType = 0x200000
	InfoDouble InfoType = 0x300000
	InfoSList  InfoType = 0x400000
	InfoOffT   InfoType = 0x600000

	infoTypeMask = 0xf00000
)

// Type extracts the value type encoded in k.
func (k Info) Type() InfoType {
	return InfoType(int(k) & infoTypeMask)
}

const (
	InfoEffectiveURL          = Info(int(InfoString) + 1)
	InfoResponseCode          = Info(int(InfoLong) + 2)
	InfoTotalTime             = Info(int(InfoDouble) + 3)
	InfoNameLookupTime        = Info(int(InfoDouble) + 4)
	InfoConnectTime           = Info(int(InfoDouble) + 5)
	InfoPretransferTime       = Info(int(InfoDouble) + 6)
	InfoSizeUpload            = Info(int(InfoDouble) + 7)
	InfoSizeUploadT           = Info(int(InfoOffT) + 7)
	InfoSizeDownload          = Info(int(InfoDouble) + 8)
	InfoSizeDownloadT         = Info(int(InfoOffT) + 8)
	InfoSpeedDownload         = Info(int(InfoDouble) + 9)
	InfoSpeedDownloadT        = Info(int(InfoOffT) + 9)
	InfoSpeedUpload           = Info(int(InfoDouble) + 10)
	InfoSpeedUploadT          = Info(int(InfoOffT) + 10)
	InfoHeaderSize            = Info(int(InfoLong) + 11)
	InfoRequestSize           = Info(int(InfoLong) + 12)
	InfoSSLVerifyResult       = Info(int(InfoLong) + 13)
	InfoFileTime              = Info(int(InfoLong) + 14)
	InfoFileTimeT             = Info(int(InfoOffT) + 14)
	InfoContentLengthDownload = Info(int(InfoDouble) + 15)
	InfoContentLengthDownT    = Info(int(InfoOffT) + 15)
	InfoContentLengthUpload   = Info(int(InfoDouble) + 16)
	InfoContentLengthUploadT  = Info(int(InfoOffT) + 16)
	InfoStartTransferTime     = Info(int(InfoDouble) + 17)
	InfoContentType           = Info(int(InfoString) + 18)
	InfoRedirectTime          = Info(int(InfoDouble) + 19)
	InfoRedirectCount         = Info(int(InfoLong) + 20)
	InfoHTTPConnectCode       = Info(int(InfoLong) + 22)
	InfoOSErrno               = Info(int(InfoLong) + 25)
	InfoNumConnects           = Info(int(InfoLong) + 26)
	InfoCookieList            = Info(int(InfoSList) + 28)
	InfoRedirectURL           = Info(int(InfoString) + 31)
	InfoPrimaryIP             = Info(int(InfoString) + 32)
	InfoAppConnectTime        = Info(int(InfoDouble) + 33)
	InfoConditionUnmet        = Info(int(InfoLong) + 35)
	InfoPrimaryPort           = Info(int(InfoLong) + 40)
	InfoLocalIP               = Info(int(InfoString) + 41)
	InfoLocalPort             = Info(int(InfoLong) + 42)
	InfoHTTPVersion           = Info(int(InfoLong) + 46)
	InfoScheme                = Info(int(InfoString) + 49)
	InfoTotalTimeT            = Info(int(InfoOffT) + 50)
)

var infoNames = map[Info]string{
	InfoEffectiveURL:          "EFFECTIVE_URL",
	InfoResponseCode:          "RESPONSE_CODE",
	InfoTotalTime:             "TOTAL_TIME",
	InfoNameLookupTime:        "NAMELOOKUP_TIME",
	InfoConnectTime:           "CONNECT_TIME",
	InfoPretransferTime:       "PRETRANSFER_TIME",
	InfoSizeUpload:            "SIZE_UPLOAD",
	InfoSizeUploadT:           "SIZE_UPLOAD_T",
	InfoSizeDownload:          "SIZE_DOWNLOAD",
	InfoSizeDownloadT:         "SIZE_DOWNLOAD_T",
	InfoSpeedDownload:         "SPEED_DOWNLOAD",
	InfoSpeedDownloadT:        "SPEED_DOWNLOAD_T",
	InfoSpeedUpload:           "SPEED_UPLOAD",
	InfoSpeedUploadT:          "SPEED_UPLOAD_T",
	InfoHeaderSize:            "HEADER_SIZE",
	InfoRequestSize:           "REQUEST_SIZE",
	InfoSSLVerifyResult:       "SSL_VERIFYRESULT",
	InfoFileTime:              "FILETIME",
	InfoFileTimeT:             "FILETIME_T",
	InfoContentLengthDownload: "CONTENT_LENGTH_DOWNLOAD",
	InfoContentLengthDownT:    "CONTENT_LENGTH_DOWNLOAD_T",
	InfoContentLengthUpload:   "CONTENT_LENGTH_UPLOAD",
	InfoContentLengthUploadT:  "CONTENT_LENGTH_UPLOAD_T",
	InfoStartTransferTime:     "STARTTRANSFER_TIME",
	InfoContentType:           "CONTENT_TYPE",
	InfoRedirectTime:          "REDIRECT_TIME",
	InfoRedirectCount:         "REDIRECT_COUNT",
	InfoHTTPConnectCode:       "HTTP_CONNECTCODE",
	InfoOSErrno:               "OS_ERRNO",
	InfoNumConnects:           "NUM_CONNECTS",
	InfoCookieList:            "COOKIELIST",
	InfoRedirectURL:           "REDIRECT_URL",
	InfoPrimaryIP:             "PRIMARY_IP",
	InfoAppConnectTime:        "APPCONNECT_TIME",
	InfoConditionUnmet:        "CONDITION_UNMET",
	InfoPrimaryPort:           "PRIMARY_PORT",
	InfoLocalIP:               "LOCAL_IP",
	InfoLocalPort:             "LOCAL_PORT",
	InfoHTTPVersion:           "HTTP_VERSION",
	InfoScheme:                "SCHEME",
	InfoTotalTimeT:            "TOTAL_TIME_T",
}

func (k Info) String() string {
	if s, ok := infoNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Info(%#x)", int(k))
}
