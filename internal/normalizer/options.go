package normalizer

import "time"

const DefaultCDNHost = "espncdn.com"

type options struct {
	now     func() time.Time
	cdnHost string
}

type Option func(*options)

// WithClock replaces the time source used for missing or unparsable dates.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithCDNHost sets the image host whose URLs may be resized.
func WithCDNHost(host string) Option {
	return func(o *options) {
		if host != "" {
			o.cdnHost = host
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		now:     time.Now,
		cdnHost: DefaultCDNHost,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
