// Package xfer offers one-call transfers on top of package easy.
//
// Download and Upload build a handle, configure it for the common case and
// run it through the handle's stream adapters. The handle is returned so its
// transfer information can be read afterwards; the caller closes it.
//
//	e, err := xfer.Download("https://example.com", os.Stdout, true, true)
//	if err != nil {
//		return err
//	}
//	defer e.Close()
//
// DownloadFile saves a URL to disk using the settings of a Config, which
// can be loaded from the user's configuration directory with LoadConfig.
package xfer
