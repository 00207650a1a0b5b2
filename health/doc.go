// Package health reports whether the gateway can do its job.
//
// A Checker reports one component: the storage root, free disk space, the
// upstream inference server, or the Redis tier. An Aggregator runs every
// registered checker in parallel under a deadline and folds the results
// into one Status. RegisterHandlers exposes the aggregate over HTTP:
//
//	/healthz  liveness, always OK while the process serves
//	/readyz   OK unless a check is unhealthy
//	/health   JSON with every check's result
package health
