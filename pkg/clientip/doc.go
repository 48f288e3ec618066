// Package clientip resolves the originating client address of an HTTP
// request behind one or more reverse proxies.
//
// GetIP walks the proxy headers in descending trust order and falls back
// to the TCP peer address. Middleware resolves the address once per
// request and stores it in the context, where GetIPFromContext reads it
// without repeating the header walk.
//
// GetIP never fails; when nothing in the request parses as an address it
// returns an empty string and callers decide how to proceed.
package clientip
