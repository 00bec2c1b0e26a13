//go:build nometrics

package obs

import (
	"context"
	"time"
)

func ObserveProxyRequest(string, int, time.Duration, string) {}

func RecordUpstreamFetch(time.Duration, string) {}

func RecordCacheLookup(bool) {}

func SetCachedRecords(int) {}

func RecordRefresh(bool) {}

func InitTracer(string) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}
