package utils

import (
	"context"

	"github.com/mmdatafocus/taxsales_validator/appctx"
	"github.com/sirupsen/logrus"
)

func GetRunIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, appctx.ContextKeyRunId)
}

func SetRunIdInContext(ctx context.Context, runId string) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyRunId, runId)
}

func GetPeriodFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, appctx.ContextKeyPeriod)
}

func SetPeriodInContext(ctx context.Context, period string) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyPeriod, period)
}

// LogFields returns the run-scoped fields carried by ctx.
func LogFields(ctx context.Context) logrus.Fields {
	fields := logrus.Fields{}
	if v, ok := GetRunIdFromContext(ctx); ok && v != "" {
		fields["run_id"] = v
	}
	if v, ok := GetPeriodFromContext(ctx); ok && v != "" {
		fields["period"] = v
	}
	return fields
}
