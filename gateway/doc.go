// Package gateway decides, for every cacheable call, whether to answer from
// the cache, forward to the upstream server, or fail.
//
// In serve mode the cache is consulted first and the upstream is only used
// for misses. In collect mode every call is forwarded and successful
// responses are recorded; with the cache failover, an unreachable upstream
// is answered from the cache when an entry exists. Concurrent identical
// misses share one upstream call through an inflight.Group.
package gateway
