package native

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
)

const unsignedPayload = "UNSIGNED-PAYLOAD"

// credentials returns the user name and password from the URL and the
// credential options, options taking precedence.
func (s *Session) credentials(step httpStep) (user, pass string, ok bool) {
	if u := step.u.User; u != nil {
		user = u.Username()
		pass, _ = u.Password()
		ok = true
	}
	if up, set := s.opts[OptUserPwd].(string); set {
		user, pass, _ = strings.Cut(up, ":")
		ok = true
	}
	if v, set := s.opts[OptUsername].(string); set {
		user, ok = v, true
	}
	if v, set := s.opts[OptPassword].(string); set {
		pass, ok = v, true
	}
	return user, pass, ok
}

// authorize adds the Authorization header selected by the auth options.
func (s *Session) authorize(req *http.Request, step httpStep) error {
	if sig := s.str(OptAWSSigV4); sig != "" {
		return s.signV4(req, step, sig)
	}

	mask := s.long(OptHTTPAuth)
	if tok := s.str(OptXOAuth2Bearer); tok != "" && mask&AuthBearer != 0 {
		req.Header.Set("Authorization", "Bearer "+tok)
		return nil
	}

	user, pass, ok := s.credentials(step)
	if !ok {
		return nil
	}

	switch {
	case mask&AuthBasic != 0:
		req.SetBasicAuth(user, pass)
	case mask&AuthDigest != 0:
		return failure(NotBuiltIn, "Digest authentication is not supported")
	}

	return nil
}

// signV4 signs req with AWS Signature Version 4. param has the form
// "provider1[:provider2[:region[:service]]]"; region and service default to
// the parts of an "service.region.amazonaws.com" host.
func (s *Session) signV4(req *http.Request, step httpStep, param string) error {
	parts := strings.Split(param, ":")
	var region, service string
	if len(parts) > 2 {
		region = parts[2]
	}
	if len(parts) > 3 {
		service = parts[3]
	}

	if region == "" || service == "" {
		labels := strings.Split(step.u.Hostname(), ".")
		if len(labels) >= 4 {
			if service == "" {
				service = labels[0]
			}
			if region == "" {
				region = labels[1]
			}
		}
	}
	if region == "" || service == "" {
		return failure(BadFunctionArgument, "aws-sigv4: region and service could not be determined")
	}

	user, pass, _ := s.credentials(step)
	creds := aws.Credentials{AccessKeyID: user, SecretAccessKey: pass, Source: "xfer"}

	hash := unsignedPayload
	if b := step.body; b == nil {
		sum := sha256.Sum256(nil)
		hash = hex.EncodeToString(sum[:])
	} else if !b.stream {
		sum := sha256.Sum256(b.data)
		hash = hex.EncodeToString(sum[:])
	}
	req.Header.Set("X-Amz-Content-Sha256", hash)

	if err := v4.NewSigner().SignHTTP(req.Context(), creds, req, hash, service, region, time.Now().UTC()); err != nil {
		return failure(BadFunctionArgument, "aws-sigv4: %v", err)
	}

	return nil
}
