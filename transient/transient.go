// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"syscall"
)

// A Category is the transience category of a particular error, as
// reported by function Categorize().
//
// The category Not means the error is not transient from the
// perspective of completing a request attempt successfully, or in
// other words that a retry after encountering this error is very
// unlikely to succeed.
//
// All other categories indicate the error is transient from the
// perspective of completing a request attempt successfully. The
// transport driver also uses the category to derive the terminal code
// it reports for a failed attempt.
type Category int

const (
	// Not indicates any non-transient error.
	Not Category = iota
	// Timeout indicates a client-side timeout. The server may be going
	// through a temporary period of slowness, or the client may succeed
	// on a future attempt waiting longer (increasing its timeout).
	//
	// Function Categorize() will return Timeout if the error or any of
	// its wrapped causes is context.DeadlineExceeded or has a Timeout()
	// function that reports true.
	Timeout
	// Resolution indicates the host name could not be resolved.
	//
	// Name resolution failures are classified as transient because they
	// commonly result from a slow or briefly unreachable resolver
	// rather than from a name that does not exist.
	//
	// Function Categorize() will return Resolution if the error is not
	// a Timeout, and the error or one of its wrapped causes is a
	// *net.DNSError.
	Resolution
	// ConnRefused indicates the remote host refused the connection, and
	// corresponds to the POSIX error code ECONNREFUSED.
	//
	// Although connection refusal may be a permanent condition, it is
	// classified as transient because it can happen if the service
	// running on the remote host is in the process of starting or
	// restarting. In this case the service is temporarily not listening
	// on the specified port, but will be once its startup is complete.
	ConnRefused
	// ConnReset indicates the remote host returned an RST packet on a
	// previously active TCP connection, and corresponds to the POSIX
	// error code ECONNRESET.
	//
	// Connection reset is not uncommon if, due to poor deployment
	// processes, a service on the remote host comes down prematurely
	// (i.e. while it is still in the process of responding to a
	// request). As well it may happen in a variety of cases where the
	// remote host is a load balancer. For these reasons, a connection
	// reset tends to indicate a high probability of success on retry.
	ConnReset
	// Handshake indicates the TLS handshake with the remote host
	// failed.
	//
	// Function Categorize() will return Handshake if the error or one
	// of its wrapped causes is a TLS record, certificate verification,
	// or hostname verification error. TLS alerts are not recognized.
	Handshake
	// NoResponse indicates the connection was closed before any part
	// of an HTTP response was received.
	//
	// Function Categorize() will return NoResponse if the error or one
	// of its wrapped causes is io.EOF or io.ErrUnexpectedEOF.
	NoResponse
)

// Categorize returns the transience category of the given error. All
// non-nil transient errors result in a transience category other than
// Not. A nil error, and an error that is not transient from the
// perspective of completing a request attempt, both produce the return
// value Not.
//
// In assessing transience, Categorize looks at wrapped cause errors
// contained within err, not just err itself. However, Categorize never
// checks if an error has a Temporary() function that returns true, as
// the semantics of Temporary() aren't entirely clear.
func Categorize(err error) Category {
	if err == nil {
		return Not
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}

	var hasTimeout hasTimeout
	if errors.As(err, &hasTimeout) && hasTimeout.Timeout() {
		return Timeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return Resolution
	}

	if isHandshake(err) {
		return Handshake
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		if errno == syscall.ECONNRESET {
			return ConnReset
		} else if errno == syscall.ECONNREFUSED {
			return ConnRefused
		}
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return NoResponse
	}

	return Not
}

func isHandshake(err error) bool {
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return true
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}
	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return true
	}
	var hostnameErr x509.HostnameError
	if errors.As(err, &hostnameErr) {
		return true
	}
	var certInvalid x509.CertificateInvalidError
	return errors.As(err, &certInvalid)
}

type hasTimeout interface {
	Timeout() bool
}
