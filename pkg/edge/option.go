package edge

import "time"

// Option is a functional option for the server.
type Option func(*Server)

// Version sets the version of the server.
func Version(v string) Option {
	return func(s *Server) { s.version = v }
}

// TLS sets the certificate and key files of the secure listener.
// Empty paths leave the listener in plaintext mode, which is only
// meant for tests and local runs.
func TLS(certFile, keyFile string) Option {
	return func(s *Server) { s.certFile, s.keyFile = certFile, keyFile }
}

// ErrorPage sets the static page served on upstream failures.
func ErrorPage(body []byte) Option {
	return func(s *Server) { s.errorPage = body }
}

// Timeouts sets the read and write timeouts of both listeners.
func Timeouts(read, write time.Duration) Option {
	return func(s *Server) { s.readTimeout, s.writeTimeout = read, write }
}

// Debug enables header logging in the access log.
func Debug(debug bool) Option {
	return func(s *Server) { s.debug = debug }
}
