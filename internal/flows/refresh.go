package flows

import "context"

// RefreshMetrics carries metric IDs needed by the refresh flow.
type RefreshMetrics struct {
	Success     int
	Failure     int
	RateLimited int
}

// RefreshEvents carries audit event names used by the refresh flow.
type RefreshEvents struct {
	Success     string
	Failure     string
	RateLimited string
}

// RefreshErrors carries host-level sentinel errors used by the refresh flow.
type RefreshErrors struct {
	EngineNotReady error
	InvalidToken   error
	RateLimited    error
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	ClientIPFromContext func(context.Context) string

	CheckRefreshRate func(ctx context.Context, ip string) error
	RefreshPair      func(refreshToken string) (access, refresh string, err error)

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, error, func() map[string]string)

	Metrics RefreshMetrics
	Events  RefreshEvents
	Errors  RefreshErrors
}

// RunRefresh exchanges a valid refresh token for a brand new pair. Old pairs
// stay valid until their own expiry; there is no server-side revocation.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) (*LoginResult, error) {
	deps = normalizeRefreshDeps(deps)
	if deps.RefreshPair == nil {
		return nil, deps.Errors.EngineNotReady
	}

	if deps.CheckRefreshRate != nil {
		if err := deps.CheckRefreshRate(ctx, deps.ClientIPFromContext(ctx)); err != nil {
			deps.MetricInc(deps.Metrics.RateLimited)
			deps.EmitAudit(ctx, deps.Events.RateLimited, false, "", deps.Errors.RateLimited, nil)
			return nil, deps.Errors.RateLimited
		}
	}

	access, refresh, err := deps.RefreshPair(refreshToken)
	if err != nil {
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Failure, false, "", deps.Errors.InvalidToken, nil)
		return nil, deps.Errors.InvalidToken
	}

	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.Success, true, "", nil, nil)
	return &LoginResult{AccessToken: access, RefreshToken: refresh}, nil
}

func normalizeRefreshDeps(deps RefreshDeps) RefreshDeps {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	return deps
}
