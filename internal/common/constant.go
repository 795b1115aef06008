package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// ClientIDHeaderName carries the device identifier for log correlation.
const ClientIDHeaderName = "x-jtrack-client-id"
