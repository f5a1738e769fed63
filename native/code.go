package native

import "strconv"

// Code is a transfer status returned by every engine operation.
// Code implements error so it can be wrapped and matched with errors.Is.
type Code int

const (
	OK                     Code = 0
	UnsupportedProtocol    Code = 1
	FailedInit             Code = 2
	URLMalformat           Code = 3
	NotBuiltIn             Code = 4
	CouldntResolveProxy    Code = 5
	CouldntResolveHost     Code = 6
	CouldntConnect         Code = 7
	WeirdServerReply       Code = 8
	RemoteAccessDenied     Code = 9
	HTTP2                  Code = 16
	PartialFile            Code = 18
	FTPCouldntRetrFile     Code = 19
	HTTPReturnedError      Code = 22
	WriteError             Code = 23
	UploadFailed           Code = 25
	ReadError              Code = 26
	OutOfMemory            Code = 27
	OperationTimedout      Code = 28
	RangeError             Code = 33
	SSLConnectError        Code = 35
	BadDownloadResume      Code = 36
	FileCouldntReadFile    Code = 37
	AbortedByCallback      Code = 42
	BadFunctionArgument    Code = 43
	TooManyRedirects       Code = 47
	UnknownOption          Code = 48
	GotNothing             Code = 52
	SendError              Code = 55
	RecvError              Code = 56
	SSLCertProblem         Code = 58
	PeerFailedVerification Code = 60
	BadContentEncoding     Code = 61
	FilesizeExceeded       Code = 63
	SendFailRewind         Code = 65
	LoginDenied            Code = 67
	SSLCACertBadFile       Code = 77
	RemoteFileNotFound     Code = 78
	Again                  Code = 81
	FTPBadFileList         Code = 87
	ChunkFailed            Code = 88
	RecursiveAPICall       Code = 93
)

var descriptions = map[Code]string{
	OK:                     "No error",
	UnsupportedProtocol:    "Unsupported protocol",
	FailedInit:             "Failed initialization",
	URLMalformat:           "URL using bad/illegal format or missing URL",
	NotBuiltIn:             "A requested feature, protocol or option was not found built-in",
	CouldntResolveProxy:    "Couldn't resolve proxy name",
	CouldntResolveHost:     "Couldn't resolve host name",
	CouldntConnect:         "Couldn't connect to server",
	WeirdServerReply:       "Weird server reply",
	RemoteAccessDenied:     "Access denied to remote resource",
	HTTP2:                  "Error in the HTTP2 framing layer",
	PartialFile:            "Transferred a partial file",
	FTPCouldntRetrFile:     "FTP: couldn't retrieve (RETR failed) the specified file",
	HTTPReturnedError:      "HTTP response code said error",
	WriteError:             "Failed writing received data to disk/application",
	UploadFailed:           "Upload failed (at start/before it took off)",
	ReadError:              "Failed to open/read local data from file/application",
	OutOfMemory:            "Out of memory",
	OperationTimedout:      "Timeout was reached",
	RangeError:             "Requested range was not delivered by the server",
	SSLConnectError:        "SSL connect error",
	BadDownloadResume:      "Couldn't resume download",
	FileCouldntReadFile:    "Couldn't read a file:// file",
	AbortedByCallback:      "Operation was aborted by an application callback",
	BadFunctionArgument:    "A library function was given a bad argument",
	TooManyRedirects:       "Number of redirects hit maximum amount",
	UnknownOption:          "An unknown option was passed in",
	GotNothing:             "Server returned nothing (no headers, no data)",
	SendError:              "Failed sending data to the peer",
	RecvError:              "Failure when receiving data from the peer",
	SSLCertProblem:         "Problem with the local SSL certificate",
	PeerFailedVerification: "SSL peer certificate or SSH remote key was not OK",
	BadContentEncoding:     "Unrecognized or bad HTTP Content or Transfer-Encoding",
	FilesizeExceeded:       "Maximum file size exceeded",
	SendFailRewind:         "Send failed since rewinding of the data stream failed",
	LoginDenied:            "Login denied",
	SSLCACertBadFile:       "Problem with the SSL CA cert (path? access rights?)",
	RemoteFileNotFound:     "Remote file not found",
	Again:                  "Socket not ready for send/recv",
	FTPBadFileList:         "Unable to parse FTP file list",
	ChunkFailed:            "Chunk callback failed",
	RecursiveAPICall:       "API function called from within callback",
}

// Strerror returns the human readable description of c.
func Strerror(c Code) string {
	if s, ok := descriptions[c]; ok {
		return s
	}
	return "Unknown error (" + strconv.Itoa(int(c)) + ")"
}

func (c Code) Error() string { return Strerror(c) }

// FormCode is the status of FormAdd.
type FormCode int

const (
	FormAddOK            FormCode = 0
	FormAddMemory        FormCode = 1
	FormAddOptionTwice   FormCode = 2
	FormAddNull          FormCode = 3
	FormAddUnknownOption FormCode = 4
	FormAddIncomplete    FormCode = 5
	FormAddIllegalArray  FormCode = 6
)

var formDescriptions = map[FormCode]string{
	FormAddOK:            "form: ok",
	FormAddMemory:        "form: out of memory",
	FormAddOptionTwice:   "form: option given twice for one section",
	FormAddNull:          "form: nil or mistyped value",
	FormAddUnknownOption: "form: unknown option",
	FormAddIncomplete:    "form: incomplete section",
	FormAddIllegalArray:  "form: illegal nested array",
}

func (c FormCode) Error() string {
	if s, ok := formDescriptions[c]; ok {
		return s
	}
	return "form: unknown error (" + strconv.Itoa(int(c)) + ")"
}
