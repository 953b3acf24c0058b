// Package exposition serves the fleet view in the Prometheus exposition
// format so existing monitoring can scrape the dashboard backend.
//
// Every scrape computes one dashboard snapshot; nothing is registered or
// cached between scrapes. The response format is negotiated from the Accept
// header (text by default, protobuf delimited when asked for).
package exposition
