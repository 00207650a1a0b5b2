package health

import (
	"context"
	"errors"

	triton "github.com/Meesho/BharatMLStack/helix-client/pkg/clients/predator/client/grpc"

	"github.com/jonwraymond/inferstore/upstream"
)

// UpstreamChecker asks the upstream inference server whether it is live.
type UpstreamChecker struct {
	client upstream.Client
	onDown Status
}

// NewUpstreamChecker creates a checker. onDown is the status reported when
// the upstream cannot be reached: degraded when cached answers can still be
// served, unhealthy when every call needs the upstream.
func NewUpstreamChecker(c upstream.Client, onDown Status) *UpstreamChecker {
	return &UpstreamChecker{client: c, onDown: onDown}
}

func (u *UpstreamChecker) Name() string { return "upstream" }

func (u *UpstreamChecker) Check(ctx context.Context) Result {
	resp, err := u.client.ServerLive(ctx, &triton.ServerLiveRequest{})
	switch {
	case errors.Is(err, upstream.ErrNotConfigured):
		return Healthy("offline: no upstream configured")
	case err != nil:
		r := Unhealthy("upstream unreachable", err)
		r.Status = u.onDown
		return r
	case !resp.GetLive():
		r := Unhealthy("upstream reports not live", ErrCheckFailed)
		r.Status = u.onDown
		return r
	}
	return Healthy("upstream live")
}

var _ Checker = (*UpstreamChecker)(nil)
