// Package authclient is the HTTP client for the external authentication
// service.
//
// The service is a black box: login, who-am-I, and logout. Every failure —
// transport, timeout, or HTTP status — is returned as a *ServiceError
// carrying status and body. Classification into the closed error taxonomy
// happens exactly once, downstream in the auth package; nothing here
// interprets failures.
package authclient
