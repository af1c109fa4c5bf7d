package http

import (
	"time"

	xutil "MarketRadar/pkg/util"
)

// ParseTime accepts RFC3339, unix seconds or unix milliseconds.
func ParseTime(s string) (time.Time, bool) { return xutil.ParseTime(s) }
