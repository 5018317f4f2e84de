package common

// AccessTokenHeaderName is the HTTP header used to carry the access token on
// inbound requests.
const AccessTokenHeaderName = "Authorization"

// AccessTokenQueryParam is the fallback query parameter for clients that
// cannot set headers (e.g. direct browser downloads).
const AccessTokenQueryParam = "token"
