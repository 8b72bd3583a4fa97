package logging

import (
	"context"
	"net/http"

	"github.com/rollbar/rollbar-go"
)

// Reporter forwards unexpected server errors to an external tracker.
type Reporter interface {
	Report(ctx context.Context, err error, r *http.Request, extras map[string]any)
}

// RollbarReporter sends errors to Rollbar. It is only constructed when a
// token is configured; otherwise NopReporter is used.
type RollbarReporter struct{}

func NewRollbarReporter(token, env, appName string) *RollbarReporter {
	rollbar.SetToken(token)
	rollbar.SetEnvironment(env)
	rollbar.SetServerRoot("github.com/iliyamo/balance-dashboard")
	rollbar.SetCustom(map[string]interface{}{"app": appName})
	return &RollbarReporter{}
}

func (RollbarReporter) Report(_ context.Context, err error, r *http.Request, extras map[string]any) {
	if r != nil {
		rollbar.RequestErrorWithExtras(rollbar.ERR, r, err, extras)
		return
	}
	rollbar.ErrorWithExtras(rollbar.ERR, err, extras)
}

// Close flushes queued items before shutdown.
func (RollbarReporter) Close() { rollbar.Close() }

type nopReporter struct{}

func (nopReporter) Report(context.Context, error, *http.Request, map[string]any) {}

func NopReporter() Reporter { return nopReporter{} }
